// Package environment names the deployment environment and carries it in request contexts.
package environment
