package contract

import "fmt"

// Participant addresses one implementation under test: a stable unique name
// and the command template it is launched with. The template's first element
// is the program; request arguments are appended after any fixed elements.
// Dir, when set, is the working directory the process starts in.
type Participant struct {
	Name    string   `json:"name" yaml:"name"`
	Command []string `json:"command" yaml:"command"`
	Dir     string   `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// Validate rejects descriptors the invoker cannot act on.
func (p Participant) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("participant has no name")
	}
	if len(p.Command) == 0 {
		return fmt.Errorf("participant %q has no command", p.Name)
	}
	if p.Command[0] == "" {
		return fmt.Errorf("participant %q has an empty program", p.Name)
	}
	return nil
}

// Argv assembles the full argument vector for one request:
// the participant's command template followed by the request tail.
func (p Participant) Argv(req Request) ([]string, error) {
	tail, err := req.Args()
	if err != nil {
		return nil, err
	}
	argv := make([]string, 0, len(p.Command)+len(tail))
	argv = append(argv, p.Command...)
	argv = append(argv, tail...)
	return argv, nil
}
