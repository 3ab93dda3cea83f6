// Package config loads the pupilflow configuration.
//
// Configuration is read from the following sources in order of precedence:
//
//  1. Environment variables (highest priority)
//  2. An optional YAML file (config.yaml, configs/config.yaml or PUPILFLOW_CONFIG)
//  3. Default values (lowest priority)
//
// All environment variables follow the pattern PUPILFLOW_<SECTION>_<FIELD>:
//
//	PUPILFLOW_SERVER_PORT=8080
//	PUPILFLOW_DATA_DIR=data
//	PUPILFLOW_DATA_COORDINATES_FILE=data/postcode_coords.csv
//	PUPILFLOW_PIPELINE_WORKERS=4
//	PUPILFLOW_PIPELINE_MAX_ROWS=5000000
//	PUPILFLOW_CACHE_WATCH=true
//	PUPILFLOW_LOGGING_LEVEL=debug
//
// Relative paths are resolved by Config.ResolvePaths.
package config
