// Package logx is soatbot's structured logging layer.
//
// It wraps zerolog behind a small Logger/Field API so components never touch
// zerolog directly. The Service owns the root logger and its sinks (readable
// console output, JSON file output) and swaps them live on config reload.
package logx
