// Package images holds the container image recipes for the git-keeper test
// fixtures and builds them with the docker command line tool.
package images

import (
	"embed"
	"errors"
	"sort"
)

//go:embed dockerfiles
var files embed.FS

// Recipe names.
const (
	Server = "server"
	Dev    = "dev"
)

// SMTPStub is the context file name of the user-supplied SMTP stub that the
// dev image runs.
const SMTPStub = "mysmtpd.py"

// ErrUnknownRecipe indicates a recipe name that is not defined.
var ErrUnknownRecipe = errors.New("unknown image recipe")

// Recipe is everything needed to build one image.
type Recipe struct {
	Name string
	Tag  string

	Dockerfile []byte
	// Assets are written into the build context next to the Dockerfile.
	Assets map[string][]byte
	// External names files that must be supplied at build time. They are not
	// part of this repository.
	External []string

	// Privileged is set when containers of the image need extended
	// privileges, as Docker-in-Docker does.
	Privileged bool
}

func mustRead(name string) []byte {
	b, err := files.ReadFile("dockerfiles/" + name)
	if err != nil {
		panic(err)
	}
	return b
}

// Recipes returns all recipes sorted by name.
func Recipes() []Recipe {
	rs := []Recipe{
		{
			Name:       Server,
			Tag:        "gkfix-server",
			Dockerfile: mustRead("server.Dockerfile"),
		},
		{
			Name:       Dev,
			Tag:        "gkfix-dev",
			Dockerfile: mustRead("dev.Dockerfile"),
			Assets: map[string][]byte{
				"entrypoint.sh": mustRead("entrypoint.sh"),
			},
			External:   []string{SMTPStub},
			Privileged: true,
		},
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].Name < rs[j].Name })
	return rs
}

// Lookup returns the recipe with the given name.
func Lookup(name string) (Recipe, error) {
	for _, r := range Recipes() {
		if r.Name == name {
			return r, nil
		}
	}
	return Recipe{}, ErrUnknownRecipe
}
