package fitmetrics

import (
	_ "embed"
)

// UsageMD is the API usage guide rendered by the docs command.
//
//go:embed embedded/usage.md
var UsageMD string

//go:embed embedded/index.html
var indexHTML string
