/*
 * Copyright 2023 nebuly.com.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package util

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestGetKeys(t *testing.T) {
	tests := []struct {
		name     string
		maps     []map[string]int
		expected []string
	}{
		{
			name:     "empty args list",
			maps:     make([]map[string]int, 0),
			expected: make([]string, 0),
		},
		{
			name: "multiple maps with overlapping keys",
			maps: []map[string]int{
				{
					"alg-1": 1,
					"alg-2": 2,
				},
				{
					"alg-1": 1,
					"alg-3": 5,
				},
			},
			expected: []string{
				"alg-1",
				"alg-2",
				"alg-3",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys := GetKeys(tt.maps...)
			assert.ElementsMatch(t, tt.expected, keys)
		})
	}
}

func TestGetSortedKeys(t *testing.T) {
	keys := GetSortedKeys(
		map[string]int{"yellow-alg": 1, "black-alg": 2},
		map[string]int{"green-alg": 1},
	)
	assert.Equal(t, []string{"black-alg", "green-alg", "yellow-alg"}, keys)
}

func TestClamp(t *testing.T) {
	tests := []struct {
		name     string
		v        int
		lower    int
		upper    int
		expected int
	}{
		{
			name:     "value within bounds",
			v:        10,
			lower:    2,
			upper:    50,
			expected: 10,
		},
		{
			name:     "value below lower bound",
			v:        -666666,
			lower:    2,
			upper:    50,
			expected: 2,
		},
		{
			name:     "value above upper bound",
			v:        666666,
			lower:    2,
			upper:    50,
			expected: 50,
		},
		{
			name:     "value equal to bound",
			v:        50,
			lower:    2,
			upper:    50,
			expected: 50,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Clamp(tt.v, tt.lower, tt.upper))
		})
	}
}

func TestMinMax(t *testing.T) {
	assert.Equal(t, 9, Min(9, 10))
	assert.Equal(t, 10, Max(9, 10))
	assert.Equal(t, 10.1, Max(10.1, 10))
	assert.Equal(t, 10.0, Min(10.1, 10))
}

func TestPartition(t *testing.T) {
	matching, others := Partition([]int{1, 2, 3, 4, 5, 6}, func(i int) bool {
		return i%2 == 0
	})
	assert.Equal(t, []int{2, 4, 6}, matching)
	assert.Equal(t, []int{1, 3, 5}, others)

	matching, others = Partition([]int{}, func(i int) bool {
		return true
	})
	assert.Empty(t, matching)
	assert.Empty(t, others)
}

func TestUnorderedEqual(t *testing.T) {
	assert.True(t, UnorderedEqual([]string{"a", "b", "b"}, []string{"b", "a", "b"}))
	assert.False(t, UnorderedEqual([]string{"a", "b", "b"}, []string{"b", "a", "a"}))
	assert.False(t, UnorderedEqual([]string{"a"}, []string{"a", "a"}))
	assert.True(t, UnorderedEqual([]string{}, []string{}))
}

func TestRandomStringLowercase(t *testing.T) {
	s := RandomStringLowercase(5)
	assert.Len(t, s, 5)
	for _, c := range s {
		assert.True(t, c >= 'a' && c <= 'z')
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("TASK_EXECUTOR_TEST_ENV", "value")
	assert.Equal(t, "value", GetEnv("TASK_EXECUTOR_TEST_ENV", "fallback"))
	assert.Equal(t, "fallback", GetEnv("TASK_EXECUTOR_TEST_ENV_MISSING", "fallback"))
}
