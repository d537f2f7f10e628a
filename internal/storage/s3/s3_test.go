package s3store

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	objects map[string][]byte
	putErr  error
	deleted []string
}

func (f *fakeClient) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[aws.ToString(in.Key)] = body
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeClient) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{}
	for k, v := range f.objects {
		if len(k) >= len(aws.ToString(in.Prefix)) && k[:len(aws.ToString(in.Prefix))] == aws.ToString(in.Prefix) {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(k), Size: aws.Int64(int64(len(v)))})
		}
	}
	return out, nil
}

func (f *fakeClient) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.Key))
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func writeArtifact(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "shop_2024-01-02_03-04-05.zip")
	require.NoError(t, os.WriteFile(p, []byte("PK-bytes"), 0o644))
	return p
}

func TestUploadUsesPrefix(t *testing.T) {
	fc := &fakeClient{}
	s := newWithClient("s3", "backups", "/mysql/shop/", fc)

	require.NoError(t, s.Upload(context.Background(), writeArtifact(t), "shop_2024-01-02_03-04-05.zip"))
	require.Equal(t, []byte("PK-bytes"), fc.objects["mysql/shop/shop_2024-01-02_03-04-05.zip"])
	require.Equal(t, "s3://backups/mysql/shop/shop_2024-01-02_03-04-05.zip", s.Location("shop_2024-01-02_03-04-05.zip"))
}

func TestUploadReportsAPIError(t *testing.T) {
	fc := &fakeClient{putErr: &smithy.GenericAPIError{Code: "AccessDenied", Message: "Access Denied"}}
	s := newWithClient("s3", "backups", "", fc)

	err := s.Upload(context.Background(), writeArtifact(t), "x.zip")
	require.ErrorContains(t, err, "AccessDenied")

	var apiErr smithy.APIError
	require.ErrorAs(t, err, &apiErr)
}

func TestUploadMissingFile(t *testing.T) {
	s := newWithClient("s3", "backups", "", &fakeClient{})
	err := s.Upload(context.Background(), filepath.Join(t.TempDir(), "nope.zip"), "nope.zip")
	require.ErrorContains(t, err, "open artifact")
}

func TestListAndDeleteStripPrefix(t *testing.T) {
	fc := &fakeClient{objects: map[string][]byte{
		"mysql/shop_2024-01-01_00-00-00.zip":  []byte("a"),
		"mysql/shop_2024-01-02_00-00-00.zip":  []byte("bb"),
		"mysql/other_2024-01-02_00-00-00.zip": []byte("c"),
	}}
	s := newWithClient("s3", "backups", "mysql", fc)

	objs, err := s.List(context.Background(), "shop_")
	require.NoError(t, err)
	require.Len(t, objs, 2)
	for _, o := range objs {
		require.NotContains(t, o.Key, "mysql/")
	}

	require.NoError(t, s.Delete(context.Background(), "shop_2024-01-01_00-00-00.zip"))
	require.Equal(t, []string{"mysql/shop_2024-01-01_00-00-00.zip"}, fc.deleted)
}
