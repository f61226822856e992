// Package config resolves the effective publisher configuration from the
// process environment, an optional .env settings file and an optional YAML
// profile, in that precedence order.
//
// Resolution happens exactly once per run; the resulting EffectiveConfig is
// immutable and passed explicitly through the pipeline.
package config
