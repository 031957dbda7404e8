package engine

import "sort"

// Store holds computed series keyed "alias.channel". Object roll-ups use
// "objectName.channel".
type Store map[string][]float64

// Key returns the store key for a channel of an alias or object.
func Key(name, channel string) string {
	return name + "." + channel
}

// Get returns the series of one channel.
func (s Store) Get(name, channel string) ([]float64, bool) {
	v, ok := s[Key(name, channel)]
	return v, ok
}

// Keys returns every key sorted.
func (s Store) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
