// Package s3keys is a small layer on the s3 sdk for handling the keys of your buckets.
//
// A Manager is bound to one region. It connects on first use and keeps a
// handle for every bucket it touched.
//
//	manager, err := s3keys.New(
//		s3keys.NewS3Connector(s3keys.WithCredentials("access-key", "secret-key", "")),
//		s3keys.WithRegion("eu-west-1"),
//	)
//
// There are operations to list, create, update, read and delete the entries of a bucket.
//
//	keys, err := manager.ListEntries(ctx, "my-bucket", "path/to/")
//
//	_, err = manager.CreateEntry(ctx, "my-bucket", "path/to/object.txt", []byte("Hello world!"))
//	if errors.Is(err, s3keys.ErrAlreadyExists) {
//	  _, err = manager.UpdateEntry(ctx, "my-bucket", "path/to/object.txt", []byte("Hello world!"))
//	}
//
//	err = manager.DeleteEntries(ctx, "my-bucket", keys)
//
// The Connector, Connection, Bucket and Entry interfaces describe everything the
// Manager needs from the storage service, S3Connector implements them for S3 and
// S3 compatible services. Entry content is streamed with an EntryReader and
// EntryWriter, which use ranged reads and multipart uploads for large objects.
package s3keys
