package testutils

// PolicyRecipe is the graph of the basic policy scenario: reviews are anonymized and joined with
// the reviews of the papers reviewer r2 has an assignment for.
const PolicyRecipe = `
tables:
  - name: review
    columns: [paper, reviewer, contents]
    key: [0, 1]
  - name: review_assgn
    columns: [paper, reviewer]
nodes:
  # declared out of order on purpose
  - name: bottom_join
    columns: [paper, reviewer, contents]
    maintain: [0]
    join:
      left: r_rewrite
      right: filter
      emit:
        - both: [0, 1]
        - left: 1
        - left: 2
  - name: r_ra_join
    columns: [reviewer, paper, contents]
    join:
      left: review
      right: review_assgn
      emit:
        - both: [1, 1]
        - both: [0, 0]
        - left: 2
  - name: r_rewrite
    columns: [paper, reviewer, contents]
    rewrite:
      input: review
      reference: review
      column: 1
      value: anonymous
      signal: 0
      referenceKey: 0
  - name: filter
    columns: [reviewer, paper, contents]
    filter:
      input: r_ra_join
      conditions:
        - column: 0
          op: in
          values: [r2]
`

// PolicyData is the workload of the basic policy scenario.
const PolicyData = `
writes:
  - table: review_assgn
    insert: [2, r1]
  - table: review_assgn
    insert: [2, r2]
  - table: review_assgn
    insert: [3, r2]
  - table: review
    insert: [2, r1, great paper]
  - table: review
    insert: [2, r2, interesting]
lookups:
  - view: bottom_join
    key: [2]
  - view: bottom_join
    key: [3]
`
