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

package core

import (
	"github.com/kube-hpc/task-executor/pkg/constant"
	"github.com/kube-hpc/task-executor/pkg/util"
	"math"
	"sync"
)

// Throttle bounds the number of workers that can be requested in a single reconciliation.
// Its capacity is always within [constant.MinCapacity, constant.MaxCapacity].
type Throttle struct {
	mtx      sync.Mutex
	capacity int
}

func NewThrottle(initialCapacity int) *Throttle {
	return &Throttle{capacity: util.Clamp(initialCapacity, constant.MinCapacity, constant.MaxCapacity)}
}

func (t *Throttle) Capacity() int {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.capacity
}

// UpdateCapacity moves the capacity in the direction of delta by a step growing
// logarithmically with its magnitude, and returns the new capacity
func (t *Throttle) UpdateCapacity(delta int) int {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.capacity = util.Clamp(t.capacity+capacityStep(delta), constant.MinCapacity, constant.MaxCapacity)
	return t.capacity
}

// capacityStep returns sign(delta) * ceil(log2(1 + |delta|))
func capacityStep(delta int) int {
	if delta == 0 {
		return 0
	}
	step := int(math.Ceil(math.Log2(1 + math.Abs(float64(delta)))))
	if delta < 0 {
		return -step
	}
	return step
}
