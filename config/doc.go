/*
Package config holds the engine configuration of a subdomain dig, with its
built-in defaults, its optional YAML file representation, and its validation.

Configuration sources in order of increasing precedence are:
  - built-in defaults, see [Defaults],
  - a YAML file loaded with [Load],
  - command-line flags explicitly set by the user.

Durations in YAML files are given as Go duration strings, such as "1500ms".

[Engine.Validate] checks a configuration once before any query gets sent. All
validation errors wrap [ErrInvalid].
*/
package config
