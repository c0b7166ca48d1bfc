package mcpserver

// MarkerFormatContract describes the managed-block marker syntax that LLM
// consumers must preserve when editing adopted configuration files.
const MarkerFormatContract = `# Ansuz Managed-Block Contract

Adopted configuration files (e.g. AGENTS.md) contain regions managed by the
Ansuz merge engine. Everything OUTSIDE these regions belongs to the project
and may be edited freely. Everything INSIDE belongs to the standards
template.

## Structure

` + "```" + `markdown
<!-- BEGIN:marker-id -->
Managed content. Replaced wholesale on the next merge run.
<!-- source-hash: abc123… -->
<!-- END:marker-id -->
` + "```" + `

## Rules

- Marker ids are unique within a file. Regions never nest or overlap.
- The source-hash trailer records the content hash the engine last wrote.
  Do not edit or remove it: a mismatch between the trailer and the block's
  current content marks the block as drifted.
- A drifted block is never silently overwritten. The next merge run reports
  a conflict for it and leaves its content untouched unless forced.
- To intentionally customise managed content, edit the block and leave the
  trailer alone; the drift then surfaces as a conflict for human review.
- Files adopted in pinned mode carry a ` + "`<!-- pinned: vX -->`" + ` comment
  recording the snapshot version they track.
`
