package command

import "strings"

// Bindings is the read side of the user's binding table.
type Bindings interface {
	// Lookup returns the command bound to key, if any.
	Lookup(key string) (string, bool)
}

// BindingMap is an in-memory binding table keyed by "label:gestureKey".
type BindingMap map[string]string

// Lookup implements Bindings.
func (m BindingMap) Lookup(key string) (string, bool) {
	cmd, ok := m[key]
	return cmd, ok
}

// Key builds the composite binding key for a label and gesture key.
func Key(label, gestureKey string) string {
	return label + ":" + gestureKey
}

// SplitKey is the inverse of Key. The label may itself contain colons;
// the gesture key is everything after the last one.
func SplitKey(key string) (label, gestureKey string, ok bool) {
	i := strings.LastIndex(key, ":")
	if i <= 0 || i == len(key)-1 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}
