package graph

// Cypher statements for the association/provenance index. The JSON files
// remain the canonical record; the graph is a queryable mirror.

const MergeContainsQuery = `
MERGE (d:Dossier {id: $dossier_id})
MERGE (t:Transcription {id: $transcription_id})
MERGE (d)-[r:CONTAINS]->(t)
SET r.position = $position
`

const RemoveContainsQuery = `
MATCH (d:Dossier {id: $dossier_id})-[r:CONTAINS]->(t:Transcription {id: $transcription_id})
DELETE r
`

const MergeProducedByQuery = `
MERGE (t:Transcription {id: $transcription_id})
MERGE (e:Engine {name: $engine})
MERGE (t)-[r:PRODUCED_BY]->(e)
SET r.slot = $slot
`

const DossiersContainingQuery = `
MATCH (d:Dossier)-[:CONTAINS]->(t:Transcription {id: $transcription_id})
RETURN d.id AS dossier_id
`

const ProvenanceQuery = `
MATCH (t:Transcription {id: $transcription_id})-[r:PRODUCED_BY]->(e:Engine)
RETURN e.name AS engine, r.slot AS slot
ORDER BY r.slot
`
