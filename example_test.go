package jobs_test

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/joeycumines/go-jobs"
)

func ExampleScheduler_Run() {
	sched, err := jobs.New(4)
	if err != nil {
		panic(err)
	}
	defer sched.Shutdown(context.Background())

	var (
		done jobs.Signal
		sum  atomic.Int64
	)
	for i := 1; i <= 100; i++ {
		if err := sched.Run(i, func(data any) { sum.Add(int64(data.(int))) }, &done); err != nil {
			panic(err)
		}
	}
	sched.Wait(&done)

	fmt.Println(sum.Load())
	//output:
	//5050
}

func ExampleScheduler_Wait() {
	sched, err := jobs.New(2, jobs.WithCPUPinning(false))
	if err != nil {
		panic(err)
	}
	defer sched.Shutdown(context.Background())

	var (
		done    jobs.Signal
		results [4]int
	)
	if err := sched.Run(nil, func(any) {
		// a job may wait on the jobs it submits, without blocking its worker
		var children jobs.Signal
		for i := range results {
			if err := sched.Run(i, func(data any) {
				results[data.(int)] = data.(int) * data.(int)
			}, &children); err != nil {
				panic(err)
			}
		}
		sched.Wait(&children)
	}, &done); err != nil {
		panic(err)
	}
	sched.Wait(&done)

	fmt.Println(results)
	//output:
	//[0 1 4 9]
}

func ExampleScheduler_Enter() {
	sched, err := jobs.New(4, jobs.WithCPUPinning(false))
	if err != nil {
		panic(err)
	}
	defer sched.Shutdown(context.Background())

	var (
		done    jobs.Signal
		mutex   jobs.Mutex
		counter int
	)
	for range 10 {
		if err := sched.Run(nil, func(any) {
			for range 100 {
				sched.Enter(&mutex)
				counter++
				sched.Exit(&mutex)
			}
		}, &done); err != nil {
			panic(err)
		}
	}
	sched.Wait(&done)

	fmt.Println(counter)
	//output:
	//1000
}
