package storage

import (
	"path"
)

var contentTypes = map[string]string{
	".json":  "application/json",
	".jsonl": "application/x-ndjson",
	".csv":   "text/csv",
}

func contentType(filePath string) string {
	if found, ok := contentTypes[path.Ext(filePath)]; ok {
		return found
	}

	return "application/octet-stream"
}
