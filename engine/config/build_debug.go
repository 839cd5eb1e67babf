//go:build !release

package config

// Release reports whether the binary was built with the release tag.
const Release = false

const validationDefault = true
