/*
 * Copyright 2026 The CovenantSQL Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package chainbus dispatches ledger notifications to subscribers.
package chainbus

import (
	"reflect"
	"sync"

	"github.com/pkg/errors"

	"github.com/CovenantSQL/SecretLedger/utils/log"
)

var (
	// ErrNotFunc indicates a handler that is not a function.
	ErrNotFunc = errors.New("handler is not a function")
	// ErrTopicNotFound indicates an unsubscribe from a topic without handlers.
	ErrTopicNotFound = errors.New("topic not found")
)

// ChainSuber defines subscribing-related bus behavior.
type ChainSuber interface {
	Subscribe(topic string, handler interface{}) error
	SubscribeAsync(topic string, handler interface{}, transactional bool) error
	SubscribeOnce(topic string, handler interface{}) error
	SubscribeOnceAsync(topic string, handler interface{}) error
	Unsubscribe(topic string, handler interface{}) error
}

// ChainPuber defines publishing-related bus behavior.
type ChainPuber interface {
	Publish(topic string, args ...interface{})
}

// BusController defines bus control behavior (checking handler's presence, synchronization).
type BusController interface {
	HasCallback(topic string) bool
	WaitAsync()
}

// Bus englobes global (subscribe, publish, control) bus behavior.
type Bus interface {
	BusController
	ChainSuber
	ChainPuber
}

// ChainBus - box for handlers and callbacks.
type ChainBus struct {
	handlers map[string][]*eventHandler
	lock     sync.Mutex // a lock for the map
	wg       sync.WaitGroup
}

type eventHandler struct {
	callBack      reflect.Value
	flagOnce      bool
	async         bool
	transactional bool
	sync.Mutex    // lock for an event handler - useful for running async callbacks serially
}

// New returns new ChainBus with empty handlers.
func New() Bus {
	return &ChainBus{
		handlers: make(map[string][]*eventHandler),
	}
}

// doSubscribe handles the subscription logic and is utilized by the public Subscribe functions.
func (bus *ChainBus) doSubscribe(topic string, fn interface{}, handler *eventHandler) error {
	if fn == nil || reflect.TypeOf(fn).Kind() != reflect.Func {
		return errors.Wrapf(ErrNotFunc, "subscribe %s with %T", topic, fn)
	}
	handler.callBack = reflect.ValueOf(fn)
	bus.lock.Lock()
	defer bus.lock.Unlock()
	bus.handlers[topic] = append(bus.handlers[topic], handler)
	return nil
}

// Subscribe subscribes to a topic.
// Returns error if `fn` is not a function.
func (bus *ChainBus) Subscribe(topic string, fn interface{}) error {
	return bus.doSubscribe(topic, fn, &eventHandler{})
}

// SubscribeAsync subscribes to a topic with an asynchronous callback
// Async determines whether subsequent Publish should wait for callback return
// Transactional determines whether subsequent callbacks for a topic are
// run serially (true) or concurrently (false)
// Returns error if `fn` is not a function.
func (bus *ChainBus) SubscribeAsync(topic string, fn interface{}, transactional bool) error {
	return bus.doSubscribe(topic, fn, &eventHandler{async: true, transactional: transactional})
}

// SubscribeOnce subscribes to a topic once. Handler will be removed after executing.
// Returns error if `fn` is not a function.
func (bus *ChainBus) SubscribeOnce(topic string, fn interface{}) error {
	return bus.doSubscribe(topic, fn, &eventHandler{flagOnce: true})
}

// SubscribeOnceAsync subscribes to a topic once with an asynchronous callback
// Async determines whether subsequent Publish should wait for callback return
// Handler will be removed after executing.
// Returns error if `fn` is not a function.
func (bus *ChainBus) SubscribeOnceAsync(topic string, fn interface{}) error {
	return bus.doSubscribe(topic, fn, &eventHandler{flagOnce: true, async: true})
}

// HasCallback returns true if exists any callback subscribed to the topic.
func (bus *ChainBus) HasCallback(topic string) bool {
	bus.lock.Lock()
	defer bus.lock.Unlock()
	return len(bus.handlers[topic]) > 0
}

// Unsubscribe removes callback defined for a topic.
// Returns error if there are no callbacks subscribed to the topic.
func (bus *ChainBus) Unsubscribe(topic string, handler interface{}) error {
	bus.lock.Lock()
	defer bus.lock.Unlock()
	if len(bus.handlers[topic]) == 0 {
		return errors.Wrapf(ErrTopicNotFound, "unsubscribe %s", topic)
	}
	if h := bus.findHandler(topic, reflect.ValueOf(handler)); h != nil {
		bus.removeHandler(topic, h)
	}
	return nil
}

// Publish executes callback defined for a topic. Any additional argument will be transferred to the callback.
// Synchronous callbacks run on the caller goroutine after the bus lock is
// released, so a callback may subscribe or publish itself.
func (bus *ChainBus) Publish(topic string, args ...interface{}) {
	passedArguments := bus.setUpPublish(args...)

	bus.lock.Lock()
	handlers := bus.handlers[topic]
	if len(handlers) == 0 {
		bus.lock.Unlock()
		return
	}
	// Handlers slice may be changed by removeHandler and Unsubscribe during iteration,
	// so make a copy and iterate the copied slice.
	copyHandlers := make([]*eventHandler, 0, len(handlers))
	copyHandlers = append(copyHandlers, handlers...)
	var syncHandlers []*eventHandler
	for _, handler := range copyHandlers {
		if !acceptable(handler.callBack.Type(), passedArguments) {
			log.WithFields(log.Fields{
				"topic":   topic,
				"handler": handler.callBack.Type().String(),
			}).Warning("handler signature does not match published arguments")
			continue
		}
		if handler.flagOnce {
			bus.removeHandler(topic, handler)
		}
		if !handler.async {
			syncHandlers = append(syncHandlers, handler)
			continue
		}
		bus.wg.Add(1)
		if handler.transactional {
			handler.Lock()
		}
		go bus.doPublishAsync(handler, passedArguments)
	}
	bus.lock.Unlock()

	for _, handler := range syncHandlers {
		handler.callBack.Call(bind(handler.callBack.Type(), passedArguments))
	}
}

func (bus *ChainBus) doPublishAsync(handler *eventHandler, args []reflect.Value) {
	defer bus.wg.Done()
	if handler.transactional {
		defer handler.Unlock()
	}
	handler.callBack.Call(bind(handler.callBack.Type(), args))
}

func (bus *ChainBus) removeHandler(topic string, h *eventHandler) {
	handlers := bus.handlers[topic]
	for i, v := range handlers {
		if v == h {
			copy(handlers[i:], handlers[i+1:])
			handlers[len(handlers)-1] = nil
			bus.handlers[topic] = handlers[:len(handlers)-1]
			return
		}
	}
}

func (bus *ChainBus) findHandler(topic string, callback reflect.Value) *eventHandler {
	if callback.Kind() != reflect.Func {
		return nil
	}
	for _, handler := range bus.handlers[topic] {
		if handler.callBack.Pointer() == callback.Pointer() {
			return handler
		}
	}
	return nil
}

func (bus *ChainBus) setUpPublish(args ...interface{}) []reflect.Value {
	passedArguments := make([]reflect.Value, 0, len(args))
	for _, arg := range args {
		passedArguments = append(passedArguments, reflect.ValueOf(arg))
	}
	return passedArguments
}

// acceptable reports whether fn can be called with args without a panic.
func acceptable(fn reflect.Type, args []reflect.Value) bool {
	if fn.IsVariadic() || fn.NumIn() != len(args) {
		return false
	}
	for i, arg := range args {
		if !arg.IsValid() {
			switch fn.In(i).Kind() {
			case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
				continue
			}
			return false
		}
		if !arg.Type().AssignableTo(fn.In(i)) {
			return false
		}
	}
	return true
}

// bind replaces nil arguments with the zero value of the parameter type.
func bind(fn reflect.Type, args []reflect.Value) []reflect.Value {
	bound := make([]reflect.Value, len(args))
	for i, arg := range args {
		if arg.IsValid() {
			bound[i] = arg
		} else {
			bound[i] = reflect.Zero(fn.In(i))
		}
	}
	return bound
}

// WaitAsync waits for all async callbacks to complete.
func (bus *ChainBus) WaitAsync() {
	bus.wg.Wait()
}
