package sshtarget

import (
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/rwool/gkfix/log"
)

// Authorizer is a method of authorizing with an SSH server.
type Authorizer interface {
	GetAuthMethod() ssh.AuthMethod
}

// PasswordAuth is a password authentication.
type PasswordAuth struct {
	ssh.AuthMethod
}

// GetAuthMethod returns the underlying authentication method.
func (pa PasswordAuth) GetAuthMethod() ssh.AuthMethod { return pa.AuthMethod }

// NewPasswordAuth uses password authentication for connecting to an SSH server.
func NewPasswordAuth(password string) PasswordAuth {
	return PasswordAuth{AuthMethod: ssh.Password(password)}
}

// PromptAuth answers keyboard-interactive challenges.
type PromptAuth struct {
	ssh.AuthMethod
}

// GetAuthMethod returns the underlying authentication method.
func (pa PromptAuth) GetAuthMethod() ssh.AuthMethod { return pa.AuthMethod }

// NewPromptAuth answers every keyboard-interactive question containing
// prompt, compared without case, with password. Other questions get an empty
// answer.
func NewPromptAuth(logger log.Logger, prompt, password string) PromptAuth {
	want := strings.ToLower(prompt)
	return PromptAuth{AuthMethod: ssh.KeyboardInteractive(
		func(user, instruction string, questions []string, echos []bool) ([]string, error) {
			answers := make([]string, len(questions))
			for i, q := range questions {
				if strings.Contains(strings.ToLower(q), want) {
					logger.Debugf("answering %q for %s", q, user)
					answers[i] = password
					continue
				}
				logger.Debugf("leaving %q unanswered", q)
			}
			return answers, nil
		})}
}
