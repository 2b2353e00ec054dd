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

package reconcile

import (
	"reflect"
	"testing"

	"github.com/blueharbor/tripsync/internal/models"
)

func trips(ids ...string) []models.Trip {
	out := make([]models.Trip, len(ids))
	for i, id := range ids {
		out[i] = models.Trip{ID: id}
	}
	return out
}

func TestToArchive(t *testing.T) {
	tests := []struct {
		name     string
		previous []string
		next     []string
		want     []string
	}{
		{
			name:     "absorbed trips archived",
			previous: []string{"trip-b-111111", "trip-a-222222"},
			next:     []string{"trip-c-333333"},
			want:     []string{"trip-a-222222", "trip-b-111111"},
		},
		{
			name:     "surviving trips untouched",
			previous: []string{"trip-a-222222"},
			next:     []string{"trip-a-222222", "trip-c-333333"},
			want:     nil,
		},
		{
			name:     "no prior trips",
			previous: nil,
			next:     []string{"trip-a-222222"},
			want:     nil,
		},
		{
			name:     "empty next archives everything",
			previous: []string{"trip-a-222222"},
			next:     nil,
			want:     []string{"trip-a-222222"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToArchive(trips(tt.previous...), trips(tt.next...))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ToArchive = %v, want %v", got, tt.want)
			}
		})
	}
}
