// Package s3fs implements domain.Filesystem on an S3 bucket. Directories are
// empty marker objects whose key ends in a slash; files are plain objects.
package s3fs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/neomorfeo/tenantdocs/internal/domain"
)

// Compile-time check: FS implements domain.Filesystem.
var _ domain.Filesystem = (*FS)(nil)

// API is the subset of *s3.Client used by FS.
type API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Options configures the S3 client built by Dial.
type Options struct {
	Bucket string
	Prefix string
	Region string

	// Endpoint selects an S3-compatible service and path-style addressing.
	Endpoint string

	// AccessKey and SecretKey override the default credential chain.
	AccessKey string
	SecretKey string
}

// FS stores the namespace below Prefix in Bucket.
type FS struct {
	api    API
	bucket string
	prefix string
}

// Dial loads the AWS configuration and returns a filesystem on opts.Bucket.
func Dial(ctx context.Context, opts Options) (*FS, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3fs: bucket is required")
	}

	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	if opts.AccessKey != "" {
		creds := credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")
		loadOpts = append(loadOpts, config.WithCredentialsProvider(creds))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return New(client, opts.Bucket, opts.Prefix), nil
}

// New wraps an existing S3 API client.
func New(api API, bucket, prefix string) *FS {
	return &FS{
		api:    api,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

// key maps a namespace path to an object key.
func (f *FS) key(p domain.Path) string {
	return strings.TrimPrefix(path.Join(f.prefix, p.String()), "/")
}

// dirKey is the marker key of a directory, also the prefix of its children.
func (f *FS) dirKey(p domain.Path) string {
	k := f.key(p)
	if k == "" {
		return ""
	}
	return k + "/"
}

// pathOf maps an object key back to a namespace path.
func (f *FS) pathOf(key string) domain.Path {
	key = strings.TrimSuffix(key, "/")
	if f.prefix != "" {
		key = strings.TrimPrefix(strings.TrimPrefix(key, f.prefix), "/")
	}
	return domain.NewPath(key)
}

func (f *FS) Exists(ctx context.Context, p domain.Path) (bool, error) {
	if _, ok, err := f.headFile(ctx, p); err != nil || ok {
		return ok, err
	}
	return f.dirExists(ctx, p)
}

func (f *FS) Create(ctx context.Context, p domain.Path) (io.WriteCloser, error) {
	if p.IsRoot() {
		return nil, &fs.PathError{Op: "create", Path: p.String(), Err: fs.ErrInvalid}
	}
	isDir, err := f.dirExists(ctx, p)
	if err != nil {
		return nil, err
	}
	if isDir {
		return nil, &fs.PathError{Op: "create", Path: p.String(), Err: errIsDir}
	}
	if err := f.Mkdir(ctx, p.Parent(), 0); err != nil {
		return nil, err
	}
	return &writer{ctx: ctx, fs: f, path: p}, nil
}

func (f *FS) Open(ctx context.Context, p domain.Path) (io.ReadCloser, error) {
	out, err := f.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(f.key(p)),
	})
	if isNotFound(err) {
		return nil, &fs.PathError{Op: "open", Path: p.String(), Err: fs.ErrNotExist}
	}
	if err != nil {
		return nil, fmt.Errorf("getting object %s: %w", f.key(p), err)
	}
	return out.Body, nil
}

func (f *FS) Delete(ctx context.Context, p domain.Path, recursive bool) (bool, error) {
	if p.IsRoot() {
		return false, nil
	}

	if _, ok, err := f.headFile(ctx, p); err != nil {
		return false, err
	} else if ok {
		return true, f.deleteKey(ctx, f.key(p))
	}

	keys, err := f.keysUnder(ctx, p)
	if err != nil {
		return false, err
	}
	if len(keys) == 0 {
		return false, nil
	}
	marker := f.dirKey(p)
	if !recursive && (len(keys) > 1 || keys[0] != marker) {
		return false, &fs.PathError{Op: "delete", Path: p.String(), Err: domain.ErrDirectoryNotEmpty}
	}
	for _, k := range keys {
		if err := f.deleteKey(ctx, k); err != nil {
			return false, err
		}
	}
	return true, nil
}

// Rename copies every object below src to dst and deletes the originals.
// It is not atomic: a failure part way leaves both trees partially populated.
func (f *FS) Rename(ctx context.Context, src, dst domain.Path) (bool, error) {
	if src.IsRoot() || src.Contains(dst) {
		return false, nil
	}
	if ok, err := f.Exists(ctx, dst); err != nil || ok {
		return false, err
	}
	if ok, err := f.dirExists(ctx, dst.Parent()); err != nil || !ok {
		return false, err
	}

	if _, ok, err := f.headFile(ctx, src); err != nil {
		return false, err
	} else if ok {
		return true, f.move(ctx, f.key(src), f.key(dst))
	}

	keys, err := f.keysUnder(ctx, src)
	if err != nil {
		return false, err
	}
	if len(keys) == 0 {
		return false, nil
	}
	from, to := f.dirKey(src), f.dirKey(dst)
	for _, k := range keys {
		if err := f.move(ctx, k, to+strings.TrimPrefix(k, from)); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (f *FS) List(ctx context.Context, p domain.Path) ([]domain.FileStatus, error) {
	if st, ok, err := f.headFile(ctx, p); err != nil {
		return nil, err
	} else if ok {
		return []domain.FileStatus{st}, nil
	}

	ok, err := f.dirExists(ctx, p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &fs.PathError{Op: "list", Path: p.String(), Err: fs.ErrNotExist}
	}

	prefix := f.dirKey(p)
	entries := []domain.FileStatus{}
	paginator := s3.NewListObjectsV2Paginator(f.api, &s3.ListObjectsV2Input{
		Bucket:    aws.String(f.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", prefix, err)
		}
		for _, cp := range page.CommonPrefixes {
			entries = append(entries, domain.FileStatus{Path: f.pathOf(aws.ToString(cp.Prefix)), IsDir: true})
		}
		for _, obj := range page.Contents {
			k := aws.ToString(obj.Key)
			if k == prefix {
				continue
			}
			entries = append(entries, domain.FileStatus{
				Path:    f.pathOf(k),
				Size:    aws.ToInt64(obj.Size),
				ModTime: aws.ToTime(obj.LastModified),
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func (f *FS) Stat(ctx context.Context, p domain.Path) (domain.FileStatus, error) {
	if st, ok, err := f.headFile(ctx, p); err != nil || ok {
		return st, err
	}
	ok, err := f.dirExists(ctx, p)
	if err != nil {
		return domain.FileStatus{}, err
	}
	if !ok {
		return domain.FileStatus{}, &fs.PathError{Op: "stat", Path: p.String(), Err: fs.ErrNotExist}
	}
	return domain.FileStatus{Path: p, IsDir: true}, nil
}

// Mkdir writes a marker object for p and every missing ancestor.
func (f *FS) Mkdir(ctx context.Context, p domain.Path, _ fs.FileMode) error {
	dirs := []domain.Path{}
	for d := p; !d.IsRoot(); d = d.Parent() {
		dirs = append(dirs, d)
	}
	for i := len(dirs) - 1; i >= 0; i-- {
		d := dirs[i]
		if _, ok, err := f.headFile(ctx, d); err != nil {
			return err
		} else if ok {
			return &fs.PathError{Op: "mkdir", Path: d.String(), Err: errNotDir}
		}
		if err := f.put(ctx, f.dirKey(d), nil); err != nil {
			return err
		}
	}
	return nil
}

func (f *FS) headFile(ctx context.Context, p domain.Path) (domain.FileStatus, bool, error) {
	if p.IsRoot() {
		return domain.FileStatus{}, false, nil
	}
	out, err := f.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(f.key(p)),
	})
	if isNotFound(err) {
		return domain.FileStatus{}, false, nil
	}
	if err != nil {
		return domain.FileStatus{}, false, fmt.Errorf("head object %s: %w", f.key(p), err)
	}
	return domain.FileStatus{
		Path:    p,
		Size:    aws.ToInt64(out.ContentLength),
		ModTime: aws.ToTime(out.LastModified),
	}, true, nil
}

func (f *FS) dirExists(ctx context.Context, p domain.Path) (bool, error) {
	if p.IsRoot() {
		return true, nil
	}
	out, err := f.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(f.bucket),
		Prefix:  aws.String(f.dirKey(p)),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("listing %s: %w", f.dirKey(p), err)
	}
	return len(out.Contents) > 0, nil
}

func (f *FS) keysUnder(ctx context.Context, p domain.Path) ([]string, error) {
	prefix := f.dirKey(p)
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(f.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(f.bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

func (f *FS) put(ctx context.Context, key string, data []byte) error {
	_, err := f.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("putting object %s: %w", key, err)
	}
	return nil
}

func (f *FS) move(ctx context.Context, from, to string) error {
	_, err := f.api.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(f.bucket),
		Key:        aws.String(to),
		CopySource: aws.String(copySource(f.bucket, from)),
	})
	if err != nil {
		return fmt.Errorf("copying %s to %s: %w", from, to, err)
	}
	return f.deleteKey(ctx, from)
}

func (f *FS) deleteKey(ctx context.Context, key string) error {
	_, err := f.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("deleting object %s: %w", key, err)
	}
	return nil
}

// copySource is the URL-encoded "bucket/key" form CopyObject expects.
func copySource(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return bucket + "/" + strings.Join(segments, "/")
}

var (
	errIsDir  = errors.New("is a directory")
	errNotDir   = errors.New("not a directory")
)

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noKey) || errors.As(err, &notFound)
}

// writer buffers a file and uploads it on Close.
type writer struct {
	ctx    context.Context
	fs     *FS
	path   domain.Path
	buf    bytes.Buffer
	closed bool
}

func (w *writer) Write(b []byte) (int, error) {
	if w.closed {
		return 0, fs.ErrClosed
	}
	return w.buf.Write(b)
}

func (w *writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.fs.put(w.ctx, w.fs.key(w.path), w.buf.Bytes())
}
