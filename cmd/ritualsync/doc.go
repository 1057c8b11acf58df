// Command ritualsync moves ritual records between the external table and the
// local JSON document and enriches them in batches with an LLM.
//
//	ritualsync sync --direction to_local
//	ritualsync enrich --source external --start 1 --end 50
//	ritualsync status
//	ritualsync audit list --limit 5
//	ritualsync check
//	ritualsync logs --follow
//
// Configuration is read from ~/.config/ritualsync/config.toml or
// ./ritualsync.toml unless --config is given; `ritualsync config init`
// writes a commented sample.
package main
