package world

var whitelistedKeys = func() map[string]struct{} {
	keys := make(map[string]struct{}, 41)
	for _, r := range "abcdefghijklmnopqrstuvwxyz0123456789" {
		keys[string(r)] = struct{}{}
	}
	for _, k := range []string{"enter", "space", "shift", "control", "backspace"} {
		keys[k] = struct{}{}
	}
	return keys
}()

// IsWhitelistedKey reports whether the client may report presses of key.
func IsWhitelistedKey(key string) bool {
	_, ok := whitelistedKeys[key]
	return ok
}
