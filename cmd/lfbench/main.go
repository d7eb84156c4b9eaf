// Command lfbench drives a short throughput benchmark of both
// containers in this module across a range of goroutine counts and
// renders the results as an HTML line chart.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/gsingh-ds/lf-containers/pqueue"
	"github.com/gsingh-ds/lf-containers/queue"
)

func main() {
	out := flag.String("out", "lfbench.html", "output HTML report path")
	duration := flag.Duration("duration", 500*time.Millisecond, "measurement window per data point")
	flag.Parse()

	concurrencies := goroutineCounts()

	queueResults := make([]float64, len(concurrencies))
	pqueueResults := make([]float64, len(concurrencies))

	for i, n := range concurrencies {
		queueResults[i] = benchmarkQueue(n, *duration)
		pqueueResults[i] = benchmarkPQueue(n, *duration)
	}

	page := components.NewPage()
	page.AddCharts(throughputChart(concurrencies, queueResults, pqueueResults))

	f, err := createReport(*out)
	if err != nil {
		fmt.Println("lfbench: could not create report:", err)
		return
	}
	defer f.Close()

	if err := page.Render(f); err != nil {
		fmt.Println("lfbench: could not render report:", err)
		return
	}

	fmt.Println("lfbench: wrote", *out)
}

func createReport(path string) (*os.File, error) {
	return os.Create(path)
}

func goroutineCounts() []int {
	max := runtime.GOMAXPROCS(0)
	counts := []int{1, 2}
	for n := 4; n <= max; n *= 2 {
		counts = append(counts, n)
	}
	return counts
}

// benchmarkQueue runs producers and a single drain goroutine for
// duration, returning pushes-per-second.
func benchmarkQueue(producers int, duration time.Duration) float64 {
	q := queue.New[int]()
	var pushed atomic.Int64
	stop := make(chan struct{})

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := 0
			for {
				select {
				case <-stop:
					return
				default:
					q.Push(v)
					pushed.Add(1)
					v++
				}
			}
		}()
	}

	var drainWG sync.WaitGroup
	drainWG.Add(1)
	go func() {
		defer drainWG.Done()
		var out int
		for {
			select {
			case <-stop:
				for q.TryPop(&out) {
				}
				return
			default:
				q.TryPop(&out)
			}
		}
	}()

	time.Sleep(duration)
	close(stop)
	wg.Wait()
	drainWG.Wait()

	return float64(pushed.Load()) / duration.Seconds()
}

// benchmarkPQueue mirrors benchmarkQueue for the priority queue, keyed by
// a monotonically increasing per-producer counter so insertion touches
// the front of the list under real contention.
func benchmarkPQueue(producers int, duration time.Duration) float64 {
	q := pqueue.New[int, int]()
	var pushed atomic.Int64
	stop := make(chan struct{})

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(seed int) {
			defer wg.Done()
			v := seed
			for {
				select {
				case <-stop:
					return
				default:
					q.Push(v, v)
					pushed.Add(1)
					v += producers
				}
			}
		}(p)
	}

	var drainWG sync.WaitGroup
	drainWG.Add(1)
	go func() {
		defer drainWG.Done()
		for {
			select {
			case <-stop:
				for {
					if _, _, ok := q.TryPop(); !ok {
						return
					}
				}
			default:
				q.TryPop()
			}
		}
	}()

	time.Sleep(duration)
	close(stop)
	wg.Wait()
	drainWG.Wait()

	return float64(pushed.Load()) / duration.Seconds()
}

func throughputChart(concurrencies []int, queueResults, pqueueResults []float64) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "lf-containers throughput",
			Subtitle: "pushes/sec vs. concurrent producers",
		}),
		charts.WithXAxisOpts(opts.XAxis{Name: "producers"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "pushes/sec"}),
	)

	labels := make([]string, len(concurrencies))
	for i, n := range concurrencies {
		labels[i] = fmt.Sprintf("%d", n)
	}
	line.SetXAxis(labels)

	line.AddSeries("queue.Queue", toLineData(queueResults))
	line.AddSeries("pqueue.PriorityQueue", toLineData(pqueueResults))
	return line
}

func toLineData(values []float64) []opts.LineData {
	data := make([]opts.LineData, len(values))
	for i, v := range values {
		data[i] = opts.LineData{Value: v}
	}
	return data
}
