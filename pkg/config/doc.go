// Package config loads env-tagged structs from the process environment,
// reading a .env file first when one exists.
package config
