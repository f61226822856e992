// Package artifact locates build outputs: the freshest installer under the
// bundle tree and the detached signature file paired with it.
package artifact
