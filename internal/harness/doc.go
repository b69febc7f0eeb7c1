// Package harness runs merge conformance scenarios.
//
// A scenario describes a target container, a list of sources, the merge
// options and the expected outcome. The harness lays the containers out in
// a fresh temporary directory, runs the merge with a fixed run id and a
// seeded remap source, and evaluates the scenario's assertions against the
// written output.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	target:
//	  - { container: 1000, entity: 500, values: [orig] }
//	sources:
//	  - name: a.jsonl
//	    entities:
//	      - { container: 2000, entity: 500, values: [a, b] }
//	  - name: broken.jsonl
//	    raw: "not json\n"
//	  - name: missing.jsonl
//	    missing: true
//	options:
//	  dedupe: exact
//	  auto_remap: true
//	  passes: 2
//	expect:
//	  state: written
//	  stats: { entity_remaps: 1, final_records: 5 }
//	assertions:
//	  - type: integrity
//	  - type: minted
//	    entity: 500
//	    count: 1
//
// # Assertion Types
//
//   - integrity: every attribute references exactly one CreateRecord
//   - record_count: the output holds exactly count records
//   - minted: entity is minted by exactly count CreateRecords
//   - attributes: entity carries exactly count attribute records
//   - entity_ids: every minted entity id keeps its low 32 bits below 2^31
//
// # Golden Files
//
// RunWithGolden compares a JSON snapshot of the merge summary against
// testdata/golden/{name}.golden. Replacement ids are drawn at random, so
// the snapshot records which ids were replaced, never what they became.
package harness
