/*
Package ports defines the driven ports (interfaces) for the Tendril engine.

These interfaces decouple workflows from concrete automation and storage
libraries. The core depends only on them, never on a browser driver.

# Key Interfaces

  - Session: an exclusively leased browser page (location, navigation, lookup, pacing).
  - Element: interaction primitives used by the action executor.
  - Ledger: dedup and quota decisions persisted by the hosting service.
  - DistributedLocker: coordination across service replicas.
  - FieldAnswerer: supplies answers for application form fields.
*/
package ports
