package main

// Output format constants.
const (
	jsonFormat = "json"
	yamlFormat = "yaml"
	textFormat = "text"
)

// envPrefix prefixes the environment variables read for settings.
const envPrefix = "RUNNABLE"
