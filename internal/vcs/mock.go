package vcs

// MockRunner implements CommandRunner for testing.
// Each method can be configured with a custom function to control behavior.
type MockRunner struct {
	OutputFunc func(dir string, name string, args ...string) (string, error)
	ShellFunc  func(dir string, command string) error

	// Calls records every invocation for assertions
	Calls []MockCall
}

// MockCall records a single runner invocation
type MockCall struct {
	Dir     string
	Name    string // empty for Shell calls
	Args    []string
	Command string // shell command line, empty for Output calls
}

// Output runs the configured OutputFunc, or returns empty output
func (m *MockRunner) Output(dir string, name string, args ...string) (string, error) {
	m.Calls = append(m.Calls, MockCall{Dir: dir, Name: name, Args: args})
	if m.OutputFunc != nil {
		return m.OutputFunc(dir, name, args...)
	}
	return "", nil
}

// Shell runs the configured ShellFunc, or succeeds silently
func (m *MockRunner) Shell(dir string, command string) error {
	m.Calls = append(m.Calls, MockCall{Dir: dir, Command: command})
	if m.ShellFunc != nil {
		return m.ShellFunc(dir, command)
	}
	return nil
}
