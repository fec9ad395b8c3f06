// Package poller implements the Change Poller.
//
// The Change Poller:
//   - Reads the store's highest record identity once at startup
//   - Re-queries the store on a fixed interval for records above that mark
//   - Broadcasts each new record, lowest identity first, as new_product
//   - Advances the mark only after a record was broadcast
package poller
