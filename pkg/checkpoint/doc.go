// Package checkpoint persists which units of a resumable run are done.
//
// A checkpoint sits next to the output file it describes
// (profiles.json -> profiles_progress.json) and holds the full ordered set
// of processed unit ids plus a timestamp:
//
//	{
//	  "processed_ids": ["https://www.linkedin.com/in/a/"],
//	  "last_updated": "2025-06-01 14:03:22"
//	}
//
// Every Save is a full atomic overwrite. A missing or corrupt checkpoint
// loads as an empty set; checkpoints speed up resumes but the output file
// stays the source of truth.
package checkpoint
