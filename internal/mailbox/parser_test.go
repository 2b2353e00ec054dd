// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mailbox

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

func TestDecodeWeb(t *testing.T) {
	plain := "Your booking is confirmed.\nConfirmation: XK4P2M"

	padded := base64.URLEncoding.EncodeToString([]byte(plain))
	unpadded := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(plain))

	for _, in := range []string{padded, unpadded} {
		got, err := decodeWeb(in)
		if err != nil {
			t.Fatalf("decodeWeb(%q) error: %v", in, err)
		}
		if got != plain {
			t.Errorf("decodeWeb = %q, want %q", got, plain)
		}
	}

	if _, err := decodeWeb("!!not-base64!!"); err == nil {
		t.Error("invalid input accepted, want error")
	}
}

func TestDataURI_ConvertsWebSafeToStandard(t *testing.T) {
	// 0xfb 0xff encodes differently in the two alphabets, which is what
	// this conversion exists for.
	raw := []byte{0xfb, 0xff, 0x01}
	webSafe := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString(raw)

	got := dataURI("image/png", webSafe)
	want := "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw)
	if got != want {
		t.Errorf("dataURI = %q, want %q", got, want)
	}
	if !strings.HasPrefix(got, "data:image/png;base64,") {
		t.Errorf("dataURI missing prefix: %q", got)
	}
}

func TestIsAuthFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"401 unauthorized", &googleapi.Error{Code: 401}, true},
		{"403 forbidden", &googleapi.Error{Code: 403}, true},
		{"404 not found", &googleapi.Error{Code: 404}, false},
		{"token refresh rejected", &oauth2.RetrieveError{}, true},
		{"invalid_grant text", fmt.Errorf(`oauth2: "invalid_grant" "Token has been expired or revoked."`), true},
		{"network blip", errors.New("connection reset by peer"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isAuthFailure(tt.err); got != tt.want {
				t.Errorf("isAuthFailure = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAuthError_Wrapping(t *testing.T) {
	inner := &googleapi.Error{Code: 401}
	err := classify(inner)

	if !IsAuthError(err) {
		t.Errorf("classify(401) not recognised as auth error: %v", err)
	}
	if !errors.Is(err, inner) {
		t.Errorf("AuthError does not unwrap to the original error")
	}

	plain := classify(errors.New("rate limited"))
	if IsAuthError(plain) {
		t.Errorf("non-auth error classified as auth: %v", plain)
	}
}
