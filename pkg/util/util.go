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
	"github.com/google/go-cmp/cmp"
	"golang.org/x/exp/constraints"
	"math/rand"
	"os"
	"sort"
)

const (
	lowercaseLetters = "abcdefghijklmnopqrstuvwxyz"
)

func Int32Addr(i int32) *int32 {
	var intVar = i
	return &intVar
}

func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func RandomStringLowercase(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = lowercaseLetters[rand.Int63()%int64(len(lowercaseLetters))]
	}
	return string(b)
}

type empty struct {
}

func GetKeys[K comparable, V any](maps ...map[K]V) []K {
	var set = make(map[K]empty)
	for _, m := range maps {
		for k := range m {
			set[k] = empty{}
		}
	}
	var res = make([]K, len(set))
	var i int
	for k := range set {
		res[i] = k
		i++
	}
	return res
}

// GetSortedKeys returns the keys of the provided maps in ascending order
func GetSortedKeys[K constraints.Ordered, V any](maps ...map[K]V) []K {
	keys := GetKeys(maps...)
	sort.Slice(keys, func(i, j int) bool {
		return keys[i] < keys[j]
	})
	return keys
}

func Min[K constraints.Ordered](v1 K, v2 K) K {
	if v1 < v2 {
		return v1
	}
	return v2
}

func Max[K constraints.Ordered](v1 K, v2 K) K {
	if v1 > v2 {
		return v1
	}
	return v2
}

// Clamp returns v bounded to the closed interval [lower, upper]
func Clamp[K constraints.Ordered](v K, lower K, upper K) K {
	return Max(lower, Min(v, upper))
}

func Filter[K any](slice []K, filter func(k K) bool) []K {
	var res = make([]K, 0)
	for _, k := range slice {
		if filter(k) {
			res = append(res, k)
		}
	}
	return res
}

// Partition splits slice into the items matching the predicate and the ones that do not,
// preserving the relative order of both
func Partition[K any](slice []K, predicate func(k K) bool) ([]K, []K) {
	var matching = make([]K, 0)
	var others = make([]K, 0)
	for _, k := range slice {
		if predicate(k) {
			matching = append(matching, k)
			continue
		}
		others = append(others, k)
	}
	return matching, others
}

func UnorderedEqual[K any](first []K, second []K) bool {
	firstLen := len(first)
	secondLen := len(second)
	if firstLen != secondLen {
		return false
	}

	visited := make([]bool, firstLen)

	for i := 0; i < firstLen; i++ {
		found := false
		element := first[i]
		for j := 0; j < secondLen; j++ {
			if visited[j] {
				continue
			}
			if cmp.Equal(element, second[j]) {
				visited[j] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}
