// Package storage persists finalized session recordings.
//
// A Storage backend is selected by Config.Provider and registered by
// importing its package for side effects:
//
//   - storage/local: files under a base directory
//   - storage/s3: Amazon S3 and S3-compatible services such as MinIO
//
// Archive maps a session ID to an object key under Config.Prefix and
// returns the stored location, which the session reports to the client in
// its audio-saved message.
//
//	storage:
//	  enabled: true
//	  provider: s3
//	  bucket: recordings
//	  endpoint: http://minio:9000
//	  force_path_style: true
package storage
