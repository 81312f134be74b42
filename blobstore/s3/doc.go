// Package s3 stores index snapshots in Amazon S3.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "snapshots/")
//
// Reads use ranged GETs, writes stream through the multipart upload
// manager and listing follows continuation tokens.
package s3
