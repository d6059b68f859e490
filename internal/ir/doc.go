// Package ir holds the typed SSA form produced from the AST: functions of
// basic blocks over doubles, i32 indices and dvec aggregates. The same
// module type is interpreted on the host, cloned and pruned for offload,
// and lowered to NVVM IR for the device.
package ir
