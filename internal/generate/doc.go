// Package generate emits entity records with deterministic ids.
//
// Every entity index yields one CreateRecord followed by one attribute
// record per plan attribute. All ids come from an ids.Tracker, so the same
// (seed, namespace, index) always produces the same entity, and a run can be
// extended later by generating from a higher start index.
//
// The record layout is described by a Plan, loaded from a CUE file:
//
//	table:   "player"
//	version: 2
//	attributes: [
//		{property: "name", type: "string", value: "player-{index}"},
//		{property: "rating", type: "int", derive: true},
//	]
package generate
