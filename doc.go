// Package catalogsync keeps a software catalog in step with a gateway
// control plane.
//
// It reads services, routes, consumers, API products and API versions from
// the control plane's search API, converts each record into a catalog
// entity and upserts it into the blueprint mapped to its type. Every run
// re-fetches and re-upserts the full entity set; nothing is persisted
// between runs.
//
// # Installation
//
//	go install github.com/blackwell-systems/catalog-sync/cmd/catalog-sync@latest
//
// # Quick Start
//
//	export CATALOG_SYNC_SOURCE_HOST=https://us.api.konghq.com
//	export CATALOG_SYNC_SOURCE_TOKEN=kpat_...
//	export CATALOG_SYNC_TARGET_CLIENT_ID=...
//	export CATALOG_SYNC_TARGET_CLIENT_SECRET=gcpsm://projects/my-project/secrets/port-secret
//	export CATALOG_SYNC_CONTROL_PLANE_ID=...
//
//	catalog-sync status
//	catalog-sync --dry-run
//	catalog-sync
//	catalog-sync schedule --cron "*/30 * * * *"
//
// # Sync order
//
// Services are fetched first and kept for the rest of the run, because API
// version relations are resolved by service name. The remaining types
// follow in mapping order. Only a rejected catalog authentication aborts a
// run; fetch and upsert failures are reported and skipped.
//
// # Layout
//
//   - cmd/catalog-sync: binary entry point
//   - internal/cli: cobra commands
//   - internal/config: viper-backed configuration
//   - internal/mapping: type to blueprint table
//   - internal/transform: record to entity conversion
//   - internal/konnect, internal/port: API clients
//   - internal/syncer: run orchestration and reporting
package catalogsync
