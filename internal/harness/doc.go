// Package harness runs sync scenarios end to end.
//
// A scenario describes a remote tree, the faults the remote injects and
// what the run must produce. The harness builds a fake remote from the
// tree, syncs it into a fresh store with deterministic run ids and time,
// and checks the summary against the scenario's expectations.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: nested_tree
//	description: "Toggles and sub-pages are expanded"
//	comments: pages
//	concurrency: 2
//	fixture:
//	  root: home
//	  page_size: 2
//	  nodes:
//	    - id: home
//	      kind: page
//	      children:
//	        - id: intro
//	        - id: toggle
//	          type: toggle
//	          children:
//	            - id: nested
//	faults:
//	  - op: list_children
//	    id: toggle
//	    error: server_error
//	    times: 2
//	expect:
//	  status: completed
//	  counts: { block: 3, page: 1 }
//	  visited: 2
//	  failures:
//	    - { id: toggle, op: list_children }
//	  absent: [nested]
//
// Fixture nodes follow testutil.Fixture. Fault errors are not_found,
// rate_limited, server_error and structural.
//
// # Checks
//
// Every field of expect is optional; absent fields are not checked. After
// the expectations, the harness checks properties that hold for every run
// (see CheckInvariants), and RunWithGolden compares the store dump against
// testdata/golden/{name}.golden.
//
// # Deterministic Testing
//
// Runs use sequential run ids, a stepping clock and retries without real
// waiting, so two runs of one scenario write byte-identical stores.
package harness
