// Command vkclear opens a window and clears it every frame, exercising the
// whole presentation chain: resize, minimize and close.
package main

import (
	"flag"
	"log/slog"
	"os"

	"vkdisplay/src/platform/glfwwindow"
	"vkdisplay/src/render"
	"vkdisplay/src/render/vkdevice"
)

type mainThread struct{}

func (mainThread) Name() string { return "main" }

func main() {
	var (
		configPath = flag.String("config", "", "YAML display configuration")
		validation = flag.Bool("validation", false, "enable the Khronos validation layer")
		verbose    = flag.Bool("v", false, "log per-frame detail")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	render.SetLogger(log)

	if err := run(*configPath, *validation, log); err != nil {
		log.Error("vkclear failed", "err", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (render.Config, error) {
	if path == "" {
		return render.DefaultConfig(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return render.Config{}, err
	}
	defer f.Close()
	return render.LoadConfig(f)
}

func run(configPath string, validation bool, log *slog.Logger) (err error) {
	defer render.CheckError(&err)

	cfg, err := loadConfig(configPath)
	render.OrPanic(err)

	render.OrPanic(glfwwindow.Init())
	defer glfwwindow.Terminate()

	native, err := glfwwindow.New(cfg.Window)
	render.OrPanic(err)
	defer native.Destroy()

	instance, err := vkdevice.NewInstance(vkdevice.InstanceConfig{
		AppName:    cfg.Window.Title,
		Extensions: native.RequiredExtensions(),
		Validation: validation,
	})
	render.OrPanic(err)
	defer vkdevice.DestroyInstance(instance)

	dev, err := vkdevice.Open(instance, log)
	render.OrPanic(err)
	defer dev.Close()

	win := render.NewWindow(dev, native, cfg.FrameBuffer, cfg.Window, cfg.Options()...)
	native.Bind(win)
	if !win.OpenWindow() {
		return win.Err()
	}
	defer win.CloseWindow()

	thread := mainThread{}
	for !native.ShouldClose() {
		glfwwindow.PollEvents()
		if win.State() == render.StateClosed {
			return win.Err()
		}
		if !win.BeginFrame(render.FrameModeRender, thread) {
			if win.State() == render.StateSuspended {
				glfwwindow.WaitEvents()
			}
			continue
		}
		win.Clear(thread)
		win.EndFrame(render.FrameModeRender, thread)
		win.BeginFlip()
		win.EndFlip()
	}
	return nil
}
