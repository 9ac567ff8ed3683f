package bugtracker

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

// TagDemoData marks generated bugs so seeding runs at most once.
const TagDemoData = "demo-data"

// DemoIDPrefix prefixes the ids of generated bugs.
const DemoIDPrefix = "BUG-DEMO-"

var titleTemplates = []string{
	// Audio
	"No sound output after system suspend/resume on {device}",
	"Audio crackling when playing {format} files with {driver}",
	"Microphone not detected on {device} with {driver} driver",
	"Audio latency issues with {application} on {kernel}",
	"System freeze when switching audio output to {device}",
	"No audio in {application} after kernel update to {version}",
	"Audio stuttering during high CPU load with {driver}",
	"Bluetooth audio disconnects randomly on {device}",
	"HDMI audio not working with {gpu} graphics card",
	"Audio volume resets to 100% after reboot",

	// Video and graphics
	"Screen tearing in {application} with {gpu} driver {version}",
	"Black screen after installing {driver} driver version {version}",
	"GPU acceleration not working in {application}",
	"Display resolution resets after reboot with {gpu}",
	"Video playback freezes with {codec} codec",
	"Multiple monitor setup broken after {driver} update",
	"WebGL crashes in {browser} with {gpu} driver",
	"Screen flickering on {display} at {resolution} resolution",
	"Video encoding fails with {encoder} on {gpu}",
	"Compositor crashes when playing {format} videos",

	// Webcam
	"Webcam not recognized in {application} on {distro}",
	"Green screen in video calls with {device} webcam",
	"Camera app crashes when switching to {device}",
	"Low FPS on {device} webcam with {driver} driver",
	"Webcam LED stays on after closing {application}",

	// Drivers
	"Kernel panic when loading {driver} module",
	"{driver} driver fails to compile on kernel {version}",
	"System boot hangs with {driver} driver enabled",
	"Memory leak in {driver} driver version {version}",
	"{device} not detected after driver update",

	// Codecs
	"Cannot play {format} files after codec update",
	"{codec} hardware acceleration not working",
	"Video artifacts when decoding {format} with {decoder}",
	"Audio sync issues with {format} container",
	"Codec conflict between {codec1} and {codec2}",

	// Desktop integration
	"Media keys not working with {player} on {desktop}",
	"Screen recording fails with {application} on Wayland",
	"Audio device switching broken in {desktop} environment",
	"Media thumbnails not generating for {format} files",
	"Hardware acceleration disabled after {update}",
}

// placeholderValues feeds the {name} placeholders of titles and descriptions.
var placeholderValues = map[string][]string{
	"device":      {"Realtek ALC892", "Intel HDA", "USB DAC", "Logitech C920", "Blue Yeti", "NVIDIA HDMI", "AMD HDMI", "Razer Kiyo", "Focusrite Scarlett", "Behringer UMC22"},
	"driver":      {"ALSA", "PulseAudio", "PipeWire", "nvidia-470", "nvidia-525", "amdgpu", "i915", "nouveau", "v4l2", "snd_hda_intel"},
	"application": {"Firefox", "Chrome", "VLC", "OBS Studio", "Kdenlive", "Audacity", "Discord", "Zoom", "Teams", "Spotify", "Steam", "GIMP", "Blender", "DaVinci Resolve"},
	"format":      {"MP4", "MKV", "FLAC", "MP3", "OGG", "WebM", "AVI", "MOV", "WAV", "H.264", "H.265/HEVC", "VP9", "AV1"},
	"kernel":      {"5.15.0-88", "6.2.0-35", "6.5.0-14", "5.19.0-50", "6.1.0-13"},
	"gpu":         {"NVIDIA GTX 1660", "NVIDIA RTX 3060", "AMD RX 580", "AMD RX 6700", "Intel UHD 630", "Intel Iris Xe"},
	"codec":       {"ffmpeg", "gstreamer", "VA-API", "VDPAU", "NVENC", "VAAPI", "x264", "x265"},
	"distro":      {"Ubuntu 22.04", "Fedora 38", "Debian 12", "Arch Linux", "openSUSE Tumbleweed", "Pop!_OS 22.04"},
	"desktop":     {"GNOME 44", "KDE Plasma 5.27", "XFCE 4.18", "Cinnamon 5.8"},
	"resolution":  {"1920x1080", "2560x1440", "3840x2160", "1366x768"},
	"version":     {"1.2.3", "2.0.1", "3.5.0", "4.1.2", "525.125.06", "470.199.02", "6.5.0"},
	"encoder":     {"ffmpeg", "x264", "nvenc", "vaapi"},
	"decoder":     {"ffmpeg", "gstreamer", "vlc"},
	"browser":     {"Firefox", "Chrome", "Chromium"},
	"player":      {"VLC", "MPV", "Rhythmbox", "Clementine"},
	"display":     {"Dell U2720Q", "LG 27UK650", "ASUS VG248QE", "Samsung Odyssey"},
	"update":      {"kernel update", "driver update", "system upgrade"},
}

func init() {
	placeholderValues["codec1"] = placeholderValues["codec"]
	placeholderValues["codec2"] = placeholderValues["codec"]
}

var (
	assignees        = []string{"John Doe", "Jane Smith", "Bob Johnson", "Alice Brown", "Charlie Wilson", "David Lee", "Emma Davis", "Frank Miller"}
	releases         = []string{"v2.0.0", "v2.1.0", "v2.1.1", "v2.2.0-beta", "v2.2.0-rc1"}
	demoCategories   = []string{"Driver", "Multimedia", "Kernel", "Hardware", "Audio", "Video", "Performance"}
	reproducibility  = []string{"Always", "Sometimes", "Random", "Once"}
	platforms        = []string{"x86_64", "aarch64", "armhf"}
	areaTags         = []string{"multimedia", "driver", "audio", "video", "kernel"}
	severityLabels   = []string{SeverityCritical, SeverityMajor, SeverityMinor, SeverityTrivial}
	reproRates       = []string{"Always", "Intermittent (70%)", "Intermittent (50%)", "Random"}
	knownWorkarounds = []string{"None found", "Downgrade driver", "Use different application", "Disable hardware acceleration", "Switch to different codec"}
)

// scenario is a reproduction recipe for one problem area.
type scenario struct {
	steps    []string
	expected string
	actual   string
}

var scenarios = map[string][]scenario{
	"audio": {
		{
			steps: []string{
				"Open system audio settings",
				"Set output device to {device}",
				"Play audio file using {application}",
				"Suspend system using power menu",
				"Resume system after 30 seconds",
			},
			expected: "Audio should resume playing normally after system wake",
			actual:   "No audio output, must manually restart {application} or switch audio device",
		},
		{
			steps: []string{
				"Install {driver} driver version {version}",
				"Reboot system",
				"Open {application}",
				"Play {format} audio file",
				"Listen for audio quality",
			},
			expected: "Audio plays clearly without distortion",
			actual:   "Crackling and popping sounds throughout playback",
		},
	},
	"video": {
		{
			steps: []string{
				"Install {gpu} driver version {version}",
				"Enable hardware acceleration in {application}",
				"Open video file in {format} format",
				"Play video at fullscreen",
				"Observe playback quality",
			},
			expected: "Smooth video playback without artifacts",
			actual:   "Screen tearing visible, especially during fast motion scenes",
		},
		{
			steps: []string{
				"Boot system with {gpu} graphics",
				"Update driver to version {version}",
				"Reboot system",
				"Wait for display manager to load",
			},
			expected: "System boots to login screen normally",
			actual:   "Black screen after GRUB, must boot with nomodeset parameter",
		},
	},
	"webcam": {
		{
			steps: []string{
				"Connect {device} webcam via USB",
				"Open {application}",
				"Navigate to video settings",
				"Select {device} as video input",
				"Start video preview",
			},
			expected: "Webcam feed displays normally",
			actual:   "Application shows 'No camera found' error",
		},
	},
	"driver": {
		{
			steps: []string{
				"Download {driver} driver source",
				"Run 'make && make install'",
				"Load module with 'modprobe {driver}'",
				"Check dmesg for errors",
			},
			expected: "Driver loads without errors",
			actual:   "Kernel panic with call trace in {driver}_init function",
		},
	},
	"codec": {
		{
			steps: []string{
				"Install {codec} codec package",
				"Open {application}",
				"Load {format} media file",
				"Attempt to play file",
			},
			expected: "Media file plays with hardware acceleration",
			actual:   "Playback fails with 'Unsupported codec' error",
		},
	},
}

// ScenarioArea infers the problem area of a title. Unknown titles are audio.
func ScenarioArea(title string) string {
	t := strings.ToLower(title)
	switch {
	case containsAny(t, "screen", "video", "gpu", "display"):
		return "video"
	case containsAny(t, "webcam", "camera"):
		return "webcam"
	case containsAny(t, "driver", "kernel"):
		return "driver"
	case containsAny(t, "codec", "format"):
		return "codec"
	default:
		return "audio"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Generator produces realistic demo bugs for an empty tracker.
type Generator struct {
	rng *rand.Rand
	now func() time.Time
}

// NewGenerator creates a generator. The same seed yields the same bugs
// for a fixed clock.
func NewGenerator(seed uint64) *Generator {
	return &Generator{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now: time.Now,
	}
}

// Generate returns n new demo bugs tagged demo-data.
func (g *Generator) Generate(n int) []*Bug {
	now := g.now().UTC()
	bugs := make([]*Bug, 0, n)
	for i := 0; i < n; i++ {
		title := g.fill(g.pick(titleTemplates))
		bugs = append(bugs, &Bug{
			ID:              fmt.Sprintf("%s%d-%d", DemoIDPrefix, now.UnixMilli(), i),
			Title:           title,
			Description:     g.description(title, now),
			Status:          StatusNew,
			Priority:        g.pick(Priorities),
			Severity:        g.pick(severityLabels),
			Category:        g.pick(demoCategories),
			AssignedTo:      g.pick(assignees),
			ReleaseVersion:  g.pick(releases),
			Reproducibility: g.pick(reproducibility),
			Platform:        g.pick(platforms),
			Tags:            []string{TagDemoData, g.pick(areaTags)},
			CreatedAt:       now.Add(-time.Duration(g.rng.Int64N(int64(60 * 24 * time.Hour)))),
		})
	}
	return bugs
}

// HasDemoData reports whether any bug was produced by a Generator.
func HasDemoData(bugs []*Bug) bool {
	for _, b := range bugs {
		if strings.HasPrefix(b.ID, DemoIDPrefix) || b.HasTag(TagDemoData) {
			return true
		}
	}
	return false
}

func (g *Generator) description(title string, now time.Time) string {
	options := scenarios[ScenarioArea(title)]
	sc := options[g.rng.IntN(len(options))]

	var b strings.Builder
	b.WriteString("**Environment:**\n")
	fmt.Fprintf(&b, "- OS: %s\n", g.pick(placeholderValues["distro"]))
	fmt.Fprintf(&b, "- Kernel: %s\n", g.pick(placeholderValues["kernel"]))
	fmt.Fprintf(&b, "- Desktop: %s\n", g.pick(placeholderValues["desktop"]))
	fmt.Fprintf(&b, "- Affected Package: %s (%s)\n",
		g.pick(placeholderValues["driver"]), g.pick(placeholderValues["version"]))

	b.WriteString("\n**Steps to Reproduce:**\n")
	for i, step := range sc.steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, g.fill(step))
	}

	fmt.Fprintf(&b, "\n**Expected Result:**\n%s\n", g.fill(sc.expected))
	fmt.Fprintf(&b, "\n**Actual Result:**\n%s\n", g.fill(sc.actual))

	noticed := now.Add(-time.Duration(g.rng.Int64N(int64(30 * 24 * time.Hour))))
	b.WriteString("\n**Additional Information:**\n")
	fmt.Fprintf(&b, "- First noticed after system update on %s\n", noticed.Format("2006-01-02"))
	fmt.Fprintf(&b, "- Reproducibility: %s\n", g.pick(reproRates))
	fmt.Fprintf(&b, "- Workaround: %s", g.pick(knownWorkarounds))
	return b.String()
}

// fill replaces each {name} placeholder with a random value.
// Unknown placeholders are left as is.
func (g *Generator) fill(text string) string {
	var b strings.Builder
	for {
		start := strings.IndexByte(text, '{')
		if start < 0 {
			break
		}
		end := strings.IndexByte(text[start:], '}')
		if end < 0 {
			break
		}
		end += start
		b.WriteString(text[:start])
		if values, ok := placeholderValues[text[start+1:end]]; ok {
			b.WriteString(g.pick(values))
		} else {
			b.WriteString(text[start : end+1])
		}
		text = text[end+1:]
	}
	b.WriteString(text)
	return b.String()
}

func (g *Generator) pick(values []string) string {
	return values[g.rng.IntN(len(values))]
}
