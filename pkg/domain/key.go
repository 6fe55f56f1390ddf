package domain

import (
	"fmt"
	"sort"
	"strings"
)

// FormatSignature renders a node signature: "Name" when no arguments are
// attached, "Name(k=v,...)" otherwise. Arguments are sorted by name so the
// rendering is deterministic.
func FormatSignature(name string, args map[string]any) string {
	if len(args) == 0 {
		return name
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, args[k])
	}
	return name + "(" + strings.Join(parts, ",") + ")"
}

// KeyPush appends a signature to a key.
func KeyPush(key, signature string) string {
	if key == "" {
		return signature
	}
	return key + KeySep + signature
}

// KeyPop splits a key into its parent key and its last signature.
func KeyPop(key string) (parent, last string) {
	idx := strings.LastIndex(key, KeySep)
	if idx < 0 {
		return "", key
	}
	return key[:idx], key[idx+1:]
}

// KeySplit returns the ordered signatures composing a key.
func KeySplit(key string) []string {
	if key == "" {
		return nil
	}
	return strings.Split(key, KeySep)
}

// SignatureName returns the class name of a signature, stripping any
// "(k=v,...)" argument suffix.
func SignatureName(signature string) string {
	if idx := strings.Index(signature, "("); idx >= 0 {
		return signature[:idx]
	}
	return signature
}
