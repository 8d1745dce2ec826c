package supervisor

import "go.yaml.in/yaml/v3"

// SerializeArgs encodes an arguments value into the textual blob passed
// across the CLI boundary described in spec §6. YAML is used rather than
// JSON because it's already the round-trip format this codebase uses for
// its own on-disk config (internal/config), and it's a self-describing
// format that round-trips any declared argument type losslessly, which is
// the only hard requirement spec §6 places on it.
func SerializeArgs[T any](args T) (string, error) {
	out, err := yaml.Marshal(args)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// DeserializeArgs decodes a blob produced by SerializeArgs.
func DeserializeArgs[T any](blob string) (T, error) {
	var args T
	err := yaml.Unmarshal([]byte(blob), &args)
	return args, err
}
