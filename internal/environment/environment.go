// Package environment gives typed access to the process configuration that
// arrives through environment variables. Values are read once and cached.
package environment

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Variable names read at startup.
const (
	RootVar               = "MY_ROOT"
	ServerPortVar         = "MY_SERVER_PORT"
	OpenAIAPIKeyVar       = "OPENAI_API_KEY"
	EventLogRepositoryVar = "MY_EVENT_LOG_REPOSITORY"
)

// MissingVariableError reports a required variable that is unset or blank.
type MissingVariableError struct {
	Name string
}

func (e *MissingVariableError) Error() string {
	return "environment variable " + e.Name + " is not set"
}

// Environment is a snapshot of the process environment.
type Environment struct {
	values map[string]string
}

// New snapshots the OS environment.
func New() *Environment {
	values := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 && kv[:i] != "" {
			values[kv[:i]] = kv[i+1:]
		}
	}
	return &Environment{values: values}
}

func (e *Environment) get(name string) (string, error) {
	v := strings.TrimSpace(e.values[name])
	if v == "" {
		return "", &MissingVariableError{Name: name}
	}
	return v, nil
}

// Root returns the working directory root for all repositories.
func (e *Environment) Root() (string, error) {
	return e.get(RootVar)
}

// ServerPort returns the HTTP listen port.
func (e *Environment) ServerPort() (int, error) {
	v, err := e.get(ServerPortVar)
	if err != nil {
		return 0, err
	}
	port, err := strconv.Atoi(v)
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("%s: invalid port %q", ServerPortVar, v)
	}
	return port, nil
}

// OpenAIAPIKey returns the API key handed to task callbacks that need it.
func (e *Environment) OpenAIAPIKey() (string, error) {
	return e.get(OpenAIAPIKeyVar)
}

// EventLogRepository returns the optional remote URL for the event-log
// repository; empty means local-only.
func (e *Environment) EventLogRepository() string {
	return strings.TrimSpace(e.values[EventLogRepositoryVar])
}
