//go:build release

package config

const Release = true

const validationDefault = false
