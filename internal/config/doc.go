// Package config resolves notionsync settings.
//
// Precedence, lowest first: built-in defaults, the YAML config file, the
// environment (NOTION_TOKEN, NOTION_ROOT_PAGE), command-line flags. The file
// is checked against an embedded CUE schema before it is decoded, so
// misspelled keys and out-of-range values fail with the offending path.
package config
