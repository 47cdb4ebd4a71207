package libface

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atticlab/libface/config"
	apperrors "github.com/atticlab/libface/errors"
	"github.com/atticlab/libface/services/recognition/findface"
	"github.com/atticlab/libface/services/recognition/kairos"
)

func testImageBase64(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// kairosStub answers the Kairos endpoints with a fixed subject id.
func kairosStub(t *testing.T, subjectID string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/":
			w.WriteHeader(http.StatusForbidden)
		case "/recognize", "/enroll":
			fmt.Fprintf(w, `{"images":[{"transaction":{"subject_id":"%s"}}]}`, subjectID)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
}

func kairosConfig(baseURL string) config.Kairos {
	return config.Kairos{
		ApplicationID:  "abcd1234",
		ApplicationKey: "0123456789abcdef0123456789abcdef",
		GalleryName:    "staff",
		BaseURL:        baseURL,
	}
}

func TestRecognition_EnableInvalidConfig(t *testing.T) {
	rec := New(nil)

	err := rec.EnableKairos(config.Kairos{ApplicationID: "short"})

	assert.True(t, apperrors.Is(err, apperrors.KindInvalidConfig))
	assert.Empty(t, rec.ServiceIDs())
}

func TestRecognition_EndToEnd(t *testing.T) {
	srv := kairosStub(t, "subj-1")
	defer srv.Close()

	rec := New(nil)
	require.NoError(t, rec.EnableKairos(kairosConfig(srv.URL)))
	assert.Equal(t, []int{kairos.ServiceID}, rec.ServiceIDs())

	img := testImageBase64(t)
	ctx := context.Background()

	resp, err := rec.Recognize(ctx, kairos.ServiceID, img)
	require.NoError(t, err)
	assert.Equal(t, kairos.ServiceID, resp.ServiceID)
	assert.Equal(t, "subj-1", resp.FaceID)

	created, err := rec.Create(ctx, img)
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "subj-1", created[kairos.ServiceID].FaceID)

	async, err := rec.CreateAsync(ctx, img)
	require.NoError(t, err)
	require.Len(t, async, 1)
	assert.Equal(t, "subj-1", async[kairos.ServiceID].FaceID)

	assert.Equal(t, map[int]bool{kairos.ServiceID: true}, rec.CheckServicesAvailability(ctx))
}

func TestRecognition_ServiceLookups(t *testing.T) {
	rec := New(nil)
	cfg := kairosConfig("")
	cfg.Limit = 12
	require.NoError(t, rec.EnableKairos(cfg))

	name, err := rec.ServiceNameByID(kairos.ServiceID)
	require.NoError(t, err)
	assert.Equal(t, "Kairos", name)

	limit, err := rec.ServiceLimitByID(kairos.ServiceID)
	require.NoError(t, err)
	assert.Equal(t, 12, limit)

	_, err = rec.ServiceNameByID(99)
	assert.True(t, apperrors.Is(err, apperrors.KindUnknownService))
}

func TestRecognition_RemoveServiceByID(t *testing.T) {
	rec := New(nil)
	require.NoError(t, rec.EnableKairos(kairosConfig("")))

	rec.RemoveServiceByID(kairos.ServiceID)
	assert.Empty(t, rec.ServiceIDs())

	// Unknown id is a no-op.
	rec.RemoveServiceByID(99)
}

func TestRecognition_FindFaceExcludedFromConcurrentCreate(t *testing.T) {
	identifies := 0
	ffSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/galleries/visitors" {
			fmt.Fprint(w, `{}`)
			return
		}
		identifies++
		fmt.Fprint(w, `{"results":{"photo.jpg":[{"confidence":0.99,"face":{"id":1}}]}}`)
	}))
	defer ffSrv.Close()

	kSrv := kairosStub(t, "subj-1")
	defer kSrv.Close()

	rec := New(nil)
	require.NoError(t, rec.EnableKairos(kairosConfig(kSrv.URL)))
	require.NoError(t, rec.EnableFindFace(config.FindFace{
		Token:       "AAAAbbbbCCCCddddEEEEffff00001111",
		GalleryName: "visitors",
		BaseURL:     ffSrv.URL,
	}))

	async, err := rec.CreateAsync(context.Background(), testImageBase64(t))

	require.NoError(t, err)
	require.Len(t, async, 1)
	assert.Equal(t, "subj-1", async[kairos.ServiceID].FaceID)
	assert.Zero(t, identifies)

	// The sequential create still reaches both providers.
	created, err := rec.Create(context.Background(), testImageBase64(t))
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, "1", created[findface.ServiceID].FaceID)
}
