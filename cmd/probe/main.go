// Command probe plays a local mp3 straight through PortAudio, bypassing the
// speaker pipeline. Useful for telling audio device problems apart from
// playback engine problems.
package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/gopxl/beep/mp3"
	"github.com/gordonklaus/portaudio"
)

func main() {
	file := flag.String("file", "", "Path to an mp3 file to play")
	duration := flag.Duration("duration", 10*time.Second, "How long to play before exiting")
	flag.Parse()

	if *file == "" {
		log.Fatal("usage: probe -file <path.mp3> [-duration 10s]")
	}

	f, err := os.Open(*file)
	if err != nil {
		log.Fatalf("open file: %v", err)
	}

	stream, format, err := mp3.Decode(f)
	if err != nil {
		log.Fatalf("decode mp3: %v", err)
	}
	defer stream.Close()

	if err := portaudio.Initialize(); err != nil {
		log.Fatalf("initialize portaudio: %v", err)
	}
	defer func() {
		if err := portaudio.Terminate(); err != nil {
			log.Printf("terminate portaudio: %v", err)
		}
	}()

	out, err := portaudio.OpenDefaultStream(
		0, 2, float64(format.SampleRate),
		format.SampleRate.N(time.Millisecond*20),
		func(out [][]float32) {
			tmp := make([][2]float64, len(out[0]))
			n, _ := stream.Stream(tmp)
			for i := 0; i < n; i++ {
				out[0][i] = float32(tmp[i][0])
				out[1][i] = float32(tmp[i][1])
			}
			for i := n; i < len(out[0]); i++ {
				out[0][i] = 0
				out[1][i] = 0
			}
		})
	if err != nil {
		log.Fatalf("open stream: %v", err)
	}

	if err := out.Start(); err != nil {
		log.Fatalf("start stream: %v", err)
	}
	defer func() {
		if err := out.Stop(); err != nil {
			log.Printf("stop stream: %v", err)
		}
	}()

	log.Printf("Playing %s at %d Hz for %v", *file, format.SampleRate, *duration)
	time.Sleep(*duration)
}
