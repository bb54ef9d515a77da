package speech

import (
	"context"
	"errors"
	"testing"

	sdkerrors "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/errors"
)

func TestNew_UnknownProvider(t *testing.T) {
	if _, err := New(Config{Provider: "espeak"}, nil); err == nil {
		t.Fatalf("expected error for unknown provider")
	}
}

func TestNew_MissingCredentialsIsUnconfigured(t *testing.T) {
	for _, provider := range []string{ProviderWatson, ProviderTencent} {
		s, err := New(Config{Provider: provider}, nil)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", provider, err)
		}
		if Configured(s) {
			t.Fatalf("%s: expected unconfigured synthesizer", provider)
		}

		_, err = s.Synthesize(context.Background(), "hello", "v")
		if !errors.Is(err, ErrUnavailable) || !errors.Is(err, ErrNotConfigured) {
			t.Fatalf("%s: expected unavailable+not configured, got %v", provider, err)
		}
	}
}

func TestNew_WatsonConfigured(t *testing.T) {
	s, err := New(Config{Provider: ProviderWatson, URL: "http://localhost:9", APIKey: "k", MaxConcurrent: 2}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !Configured(s) {
		t.Fatalf("expected configured synthesizer")
	}
	if _, ok := s.(*Paced); !ok {
		t.Fatalf("expected paced wrapper, got %T", s)
	}
}

func TestNew_EdgeNeedsNoCredentials(t *testing.T) {
	s, err := New(Config{Provider: ProviderEdge}, nil)
	if err != nil || !Configured(s) {
		t.Fatalf("edge: s=%T err=%v", s, err)
	}
}

func TestTencent_RejectsNonNumericVoice(t *testing.T) {
	tc, err := NewTencent(TencentConfig{SecretID: "id", SecretKey: "key"})
	if err != nil {
		t.Fatalf("NewTencent: %v", err)
	}
	if _, err := tc.Synthesize(context.Background(), "hello", "en-US_AllisonV3Voice"); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}
}

func TestClassifyTencent(t *testing.T) {
	bad := sdkerrors.NewTencentCloudSDKError("InvalidParameterValue.VoiceType", "bad voice", "req-1")
	if err := classifyTencent(bad); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected ErrRejected, got %v", err)
	}

	auth := sdkerrors.NewTencentCloudSDKError("AuthFailure.SignatureFailure", "bad signature", "req-2")
	if err := classifyTencent(auth); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}

	if err := classifyTencent(errors.New("dial tcp: timeout")); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
