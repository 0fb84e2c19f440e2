package whatsapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataX-ai/fitness-pal/internal/domain"
)

type recorderStub struct {
	bodies   []string
	incoming []bool
}

func (r *recorderStub) CreateRawMessage(_ context.Context, _ string, body string, incoming bool) (domain.RawMessage, error) {
	r.bodies = append(r.bodies, body)
	r.incoming = append(r.incoming, incoming)
	return domain.RawMessage{ID: "m1", Body: body, Incoming: incoming}, nil
}

func TestSendTextRecordsAndPosts(t *testing.T) {
	var gotForm map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		user, _, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "AC123", user)
		gotForm = map[string]string{
			"To":   r.PostFormValue("To"),
			"From": r.PostFormValue("From"),
			"Body": r.PostFormValue("Body"),
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	recorder := &recorderStub{}
	client := NewClient(Config{
		AccountSID: "AC123",
		AuthToken:  "secret",
		Sender:     "whatsapp:+14155238886",
		APIBase:    server.URL,
	}, recorder)

	user := domain.User{ID: "user-1", PhoneNumber: "+15550001"}
	require.NoError(t, client.SendText(context.Background(), user, "hello there"))

	assert.Equal(t, "whatsapp:+15550001", gotForm["To"])
	assert.Equal(t, "whatsapp:+14155238886", gotForm["From"])
	assert.Equal(t, "hello there", gotForm["Body"])
	require.Len(t, recorder.bodies, 1)
	assert.Equal(t, "hello there", recorder.bodies[0])
	assert.False(t, recorder.incoming[0])
}

func TestSendTemplatePostsContentSid(t *testing.T) {
	var contentSID, contentVars string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		contentSID = r.PostFormValue("ContentSid")
		contentVars = r.PostFormValue("ContentVariables")
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	recorder := &recorderStub{}
	client := NewClient(Config{AccountSID: "AC123", AuthToken: "secret", Sender: "whatsapp:+1", APIBase: server.URL}, recorder)

	user := domain.User{ID: "user-1", PhoneNumber: "whatsapp:+15550001"}
	err := client.SendTemplate(context.Background(), user, "HX42", map[string]string{"1": "9.99"})
	require.NoError(t, err)

	assert.Equal(t, "HX42", contentSID)
	assert.JSONEq(t, `{"1":"9.99"}`, contentVars)
	require.Len(t, recorder.bodies, 1)
	assert.Equal(t, "template:HX42", recorder.bodies[0])
}

func TestSendTextSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"code": 21211}`, http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(Config{AccountSID: "AC123", AuthToken: "secret", Sender: "whatsapp:+1", APIBase: server.URL}, &recorderStub{})

	err := client.SendText(context.Background(), domain.User{ID: "u1", PhoneNumber: "+15550001"}, "hi")
	assert.ErrorContains(t, err, "status 400")
}

func TestRenderTwiML(t *testing.T) {
	out, err := RenderTwiML([]string{"first reply", "second & final"})
	require.NoError(t, err)
	assert.Contains(t, string(out), "<Response><Message>first reply</Message><Message>second &amp; final</Message></Response>")

	empty, err := RenderTwiML(nil)
	require.NoError(t, err)
	assert.Contains(t, string(empty), "<Response>")
}
