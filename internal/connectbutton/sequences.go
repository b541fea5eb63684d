package connectbutton

import (
	"fmt"
	"math"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/connect-button/connect/internal/anim"
	"github.com/connect-button/connect/internal/button"
	"github.com/connect-button/connect/internal/connection"
	"github.com/connect-button/connect/internal/flow"
	"github.com/connect-button/connect/internal/gesture"
	"github.com/connect-button/connect/internal/revert"
	"github.com/connect-button/connect/internal/theme"
)

// render shows conn as a toggle in the state its status implies.
func (w *Widget) render(conn connection.Connection) {
	w.sched.RevertAll()
	w.completing = false
	w.deferred = nil

	c := conn.Clone()
	w.conn = &c
	w.service = primaryService(c)

	w.mode = modeToggle
	w.emailReady = false
	w.emailAlpha = 0
	w.email.Blur()
	w.helper = helperPowered
	w.helperErr = false
	w.labelAlpha = 1
	w.trackAlpha = 1
	w.trackColor = theme.HexTrack

	w.icon = nil
	w.queue(w.flow.LoadImage(w.service.MonochromeIconURL, func(b []byte) { w.icon = b }))

	w.label = w.statusLabel()
	switch c.Status {
	case connection.StatusEnabled:
		w.drag.SetSettledAt(gesture.On)
		w.drag.SetColors(theme.HexTrack, theme.HexTrack)
		w.machine.Set(button.Enabled)
	case connection.StatusDisabled:
		w.drag.SetSettledAt(gesture.Off)
		w.drag.SetColors(theme.HexTrack, theme.HexTrack)
		w.machine.Set(button.Disabled)
	default:
		end := theme.HexTrack
		if w.flow.ShouldPresentEmail() {
			end = theme.HexEmailTrackEnd
		}
		w.drag.SetSettledAt(gesture.Off)
		w.drag.SetColors(theme.HexTrack, end)
		w.machine.Set(button.Initial)
	}
}

// reset is the safe rendering after a failure: back to the email step when
// one is required, otherwise the last known connection.
func (w *Widget) reset() {
	if w.flow.ShouldPresentEmail() {
		w.emailTransition(0, true)
		return
	}
	if w.conn != nil {
		w.render(*w.conn)
	}
}

func (w *Widget) dispatchError(e connection.ErrorResponse) {
	w.notifyError(e)
	w.reset()
}

func (w *Widget) handleKey(msg tea.KeyMsg) {
	if w.Capturing() {
		if key.Matches(msg, w.keys.Submit) {
			w.submitEmail()
			return
		}
		var cmd tea.Cmd
		w.email, cmd = w.email.Update(msg)
		w.queue(cmd)
		return
	}
	switch {
	case key.Matches(msg, w.keys.Tap):
		w.tap()
	case key.Matches(msg, w.keys.FlingOn):
		w.fling(gesture.On)
	case key.Matches(msg, w.keys.FlingOff):
		w.fling(gesture.Off)
	case key.Matches(msg, w.keys.About):
		w.queue(w.about())
	}
}

func (w *Widget) inset() int {
	if w.dark {
		return 1
	}
	return 0
}

func (w *Widget) handleMouse(msg tea.MouseMsg) {
	x := float64(msg.X - w.originX - w.inset())
	y := msg.Y - w.originY
	inBody := y >= w.inset() && y < w.inset()+bodyHeight && x >= 0 && x < float64(w.trackWidth)
	onHelper := y == bodyHeight+2*w.inset()

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button != tea.MouseButtonLeft {
			return
		}
		p := &pressState{x: x, body: inBody, helper: onHelper}
		if inBody && w.gesturesAllowed() && w.drag.Press(x, w.now()) {
			p.dragging = true
			w.interruptForGesture()
		}
		w.press = p
	case tea.MouseActionMotion:
		p := w.press
		if p == nil || !p.dragging {
			return
		}
		if math.Abs(x-p.x) >= 1 {
			p.moved = true
		}
		w.onDragMoved(w.drag.Drag(x, w.now()))
	case tea.MouseActionRelease:
		p := w.press
		w.press = nil
		switch {
		case p == nil:
		case p.dragging:
			r := w.drag.Release(w.now())
			if p.moved {
				w.commit(r)
			} else {
				w.tap()
			}
		case p.helper && onHelper:
			w.queue(w.about())
		case p.body && inBody:
			if w.mode == modeEmail && x < w.drag.Left() {
				w.queue(w.email.Focus())
				return
			}
			w.tap()
		}
	}
}

func (w *Widget) about() tea.Cmd {
	if w.conn == nil {
		return nil
	}
	msg := AboutMsg{Connection: w.conn.Clone()}
	return func() tea.Msg { return msg }
}

func (w *Widget) gesturesAllowed() bool {
	return w.flow != nil && w.conn != nil && w.mode == modeToggle && len(w.anims.Overlays()) == 0
}

// interruptForGesture cancels, in order, the pending revertible action,
// the pending network calls, the icon load and an in-flight disable
// animation.
func (w *Widget) interruptForGesture() {
	w.sched.RevertAll()
	w.flow.CancelDisconnect()
	w.flow.CancelConnect()
	w.flow.CancelImageLoad()
	if d := w.disabling; d.Running() {
		w.disabling = nil
		w.anims.Cancel(d)
		w.label = w.statusLabel()
	}
	w.disabling = nil
}

func (w *Widget) onDragMoved(p gesture.Progress) {
	w.sched.RevertAll()
	w.flow.CancelDisconnect()
	w.applyDrag(p)
}

func (w *Widget) applyDrag(p gesture.Progress) {
	w.trackColor = p.TrackColor
	w.labelAlpha = clamp01(1 - p.TextFade/labelFadeOut)
}

func (w *Widget) fling(side gesture.Side) {
	if !w.gesturesAllowed() || w.drag.Dragging() {
		return
	}
	w.interruptForGesture()
	v := flingSpeed
	if side == gesture.Off {
		v = -v
	}
	w.commit(gesture.Release{Left: w.drag.Left(), Side: side, Velocity: v})
}

// commit acts on a release. Settling on the side that matches the
// connection is purely visual; crossing sides starts a flow.
func (w *Widget) commit(r gesture.Release) {
	enabled := w.conn.Enabled()
	switch {
	case r.Side == gesture.Off && !enabled:
		w.settle(gesture.Off, r.Velocity, nil)
	case r.Side == gesture.Off:
		w.settle(gesture.Off, r.Velocity, w.disable)
	case enabled:
		w.settle(gesture.On, r.Velocity, nil)
	case w.flow.ShouldPresentEmail():
		w.beginFlow()
		w.emailTransition(r.Velocity, false)
	default:
		w.beginFlow()
		w.settle(gesture.On, r.Velocity, func() {
			w.play(w.validationSteps(w.setupEmail)...)
		})
	}
}

func (w *Widget) settle(side gesture.Side, velocity float64, done func()) {
	w.queue(w.drag.Settle(side, velocity, done))
	if !w.drag.Settling() {
		w.applyDrag(w.drag.Progress())
	}
}

func (w *Widget) tap() {
	if o := w.anims.TopOverlay(anim.OverlayProgress); o != nil && o.OnTap != nil {
		o.OnTap()
		return
	}
	switch {
	case w.conn == nil || w.flow == nil:
		return
	case w.mode == modeEmail:
		if w.emailReady {
			w.submitEmail()
		}
		return
	case w.mode == modeBusy || w.drag.Settling():
		return
	case w.conn.Enabled():
		w.hintTurnOff()
		return
	}
	w.beginFlow()
	if w.flow.ShouldPresentEmail() {
		w.emailTransition(0, false)
		return
	}
	w.slideToVerify()
}

func (w *Widget) hintTurnOff() {
	w.sched.RevertAll()
	conn := w.conn
	w.queue(w.sched.Run(revert.Funcs{
		ApplyFn: func() { w.label = labelSlideToTurnOff },
		RevertFn: func() {
			if w.conn == conn {
				w.label = labelConnected
			}
		},
	}, w.timings.Long))
}

// beginFlow clears everything a new connect flow supersedes.
func (w *Widget) beginFlow() {
	w.mode = modeBusy
	w.sched.RevertAll()
	w.flow.CancelDisconnect()
	w.flow.CancelConnect()
	w.flow.CancelImageLoad()
	w.flow.StopRedirectMonitor()
}

// emailTransition slides the handle to the end and reveals the email
// field. With immediate set the sequence is fast-forwarded to its end
// state.
func (w *Widget) emailTransition(velocity float64, immediate bool) {
	w.mode = modeEmail
	w.emailReady = false
	start, end := w.drag.Left(), w.drag.MaxLeft()
	from := w.labelAlpha
	a := w.play(anim.Step{
		Kind:     anim.KindRevealEmail,
		Duration: gesture.TransitionDuration(start, end, velocity, w.timings.Medium),
		Ease:     anim.FastOutSlowIn,
		OnStart: func(*anim.Animation) {
			w.helper = helperAuthorize
			w.helperErr = false
		},
		OnUpdate: func(f float64) {
			w.drag.MoveTo(anim.Lerp(start, end, f))
			w.labelAlpha = anim.Lerp(from, 0, f)
			w.trackAlpha = 1 - f
			w.emailAlpha = clamp01((f - 0.5) * 2)
		},
		OnEnd: func(a *anim.Animation) {
			if a.Canceled() {
				return
			}
			w.drag.SetSettledAt(gesture.On)
			w.emailReady = true
			w.queue(w.email.Focus())
		},
	})
	if immediate {
		w.anims.End(a)
	}
}

// slideToVerify is the tap path when no email step is needed.
func (w *Widget) slideToVerify() {
	start, end := w.drag.Left(), w.drag.MaxLeft()
	slide := anim.Step{
		Kind:     anim.KindSlideHandle,
		Duration: w.timings.Medium,
		Ease:     anim.FastOutSlowIn,
		OnUpdate: func(f float64) {
			w.drag.MoveTo(anim.Lerp(start, end, f))
			w.labelAlpha = clamp01(1 - f/labelFadeOut)
		},
		OnEnd: func(a *anim.Animation) {
			if a.Canceled() {
				return
			}
			w.drag.SetSettledAt(gesture.On)
		},
	}
	w.play(append([]anim.Step{slide}, w.validationSteps(w.setupEmail)...)...)
}

func (w *Widget) submitEmail() {
	w.sched.RevertAll()
	email, err := connection.ValidateEmail(w.email.Value())
	if err != nil {
		w.log.Debug("email rejected", "error", err)
		w.queue(w.sched.Run(revert.Funcs{
			ApplyFn:  func() { w.helperErr = true },
			RevertFn: func() { w.helperErr = false },
		}, w.timings.Long))
		return
	}
	w.flow.CancelConnect()
	w.flow.StopRedirectMonitor()
	w.emailReady = false
	w.email.Blur()
	w.play(w.validationSteps(email)...)
}

// validationSteps fills the first half of the verifying progress and then
// hands over to the account or login path.
func (w *Widget) validationSteps(email string) []anim.Step {
	var bar *anim.Overlay
	return []anim.Step{{
		Kind:     anim.KindProgress,
		Duration: w.timings.Long,
		Ease:     anim.Linear,
		OnStart: func(*anim.Animation) {
			if err := w.flow.PrepareAuthentication(email); err != nil {
				w.log.Debug("authentication email not cached", "error", err)
			}
			w.mode = modeBusy
			bar = w.anims.AddOverlay(anim.OverlayProgress)
			bar.Text = labelVerifying
			bar.Color = theme.HexProgress
			bar.Track = theme.HexTrack
		},
		OnUpdate: func(f float64) { bar.Progress = f / 2 },
		OnCancel: func(*anim.Animation) {
			w.anims.RemoveOverlay(bar)
			if w.flow.ShouldPresentEmail() {
				w.mode = modeEmail
				w.emailReady = true
			}
		},
		OnEnd: func(a *anim.Animation) {
			if a.Canceled() {
				return
			}
			w.afterVerify(w.flow.Email(), bar)
		},
	}}
}

func (w *Widget) afterVerify(email string, bar *anim.Overlay) {
	fill := func(f float64) { bar.Progress = 0.5 + f/2 }
	if w.flow.ShouldPresentCreateAccount(email) {
		w.machine.Set(button.CreateAccount)
		w.play(anim.Step{
			Kind:     anim.KindProgress,
			Duration: w.timings.Long,
			Ease:     anim.Linear,
			OnStart: func(*anim.Animation) {
				bar.Text = labelCreatingAccount
				w.helper = fmt.Sprintf(helperNewAccount, email)
			},
			OnUpdate: fill,
			OnCancel: func(*anim.Animation) { w.anims.RemoveOverlay(bar) },
		}, w.countdownStep())
		return
	}
	w.play(anim.Step{
		Kind:     anim.KindProgress,
		Duration: w.timings.Medium,
		Ease:     anim.Linear,
		OnUpdate: fill,
		OnCancel: func(*anim.Animation) { w.anims.RemoveOverlay(bar) },
		OnEnd: func(a *anim.Animation) {
			if a.Canceled() {
				return
			}
			w.connect()
		},
	})
}

// countdownStep shows "Continue to <service>" and connects when it runs
// out. Tapping the overlay connects immediately.
func (w *Widget) countdownStep() anim.Step {
	var cont *anim.Overlay
	advanced := false
	advance := func() {
		cont.OnTap = nil
		w.connect()
	}
	return anim.Step{
		Kind:     anim.KindCountdown,
		Duration: w.timings.AutoAdvance,
		Ease:     anim.Linear,
		OnStart: func(a *anim.Animation) {
			w.helper = helperPowered
			cont = w.anims.AddOverlay(anim.OverlayProgress)
			cont.Text = fmt.Sprintf(labelContinueTo, w.service.Name)
			cont.Color = w.service.BrandColor
			cont.Track = gesture.Darker(w.service.BrandColor, 0.3)
			cont.OnTap = func() {
				advanced = true
				w.anims.Cancel(a)
				advance()
			}
		},
		OnUpdate: func(f float64) { cont.Progress = f },
		OnCancel: func(*anim.Animation) {
			if !advanced {
				w.anims.DismissOverlays(anim.OverlayProgress)
			}
		},
		OnEnd: func(a *anim.Animation) {
			if a.Canceled() {
				return
			}
			advance()
		},
	}
}

func (w *Widget) connect() {
	w.queue(w.flow.Connect(*w.conn, w.machine, func(e connection.ErrorResponse) {
		w.flow.StopRedirectMonitor()
		w.anims.DismissOverlays(anim.OverlayProgress)
		w.dispatchError(e)
	}))
	w.flow.StopRedirectMonitor()
	w.flow.MonitorRedirect(w.src, w.onRedirectResume)
}

func (w *Widget) onRedirectResume() {
	w.labelAlpha = 1
	w.anims.DismissOverlays(anim.OverlayProgress, anim.OverlayCheckMark)
	w.reset()
}

// complete plays the success sequence: the connecting progress, a check
// mark, then the handle sliding home while the overlays fade.
func (w *Widget) complete() {
	if w.conn == nil {
		w.log.Warn("connect result without a connection")
		return
	}
	w.mode = modeBusy
	w.completing = true
	w.emailReady = false
	w.email.Blur()

	brand := w.service.BrandColor
	bar := w.anims.AddOverlay(anim.OverlayProgress)
	bar.Text = labelConnectingAccount
	bar.Color = brand
	bar.Track = gesture.Darker(brand, 0.3)

	var check *anim.Overlay
	mid, end := w.drag.MaxLeft()/2, w.drag.MaxLeft()
	a := w.play(
		anim.Step{
			Kind:     anim.KindProgress,
			Duration: w.timings.Long,
			Ease:     anim.Linear,
			OnStart: func(*anim.Animation) {
				w.label = labelConnected
				w.labelAlpha = 1
			},
			OnUpdate: func(f float64) { bar.Progress = f },
			OnEnd: func(a *anim.Animation) {
				if !a.Canceled() {
					bar.Text = ""
				}
			},
		},
		anim.Step{
			Kind:     anim.KindCheckMark,
			Delay:    checkMarkDelay,
			Duration: w.timings.Short,
			Ease:     anim.FastOutSlowIn,
			OnStart: func(*anim.Animation) {
				check = w.anims.AddOverlay(anim.OverlayCheckMark)
				check.Alpha = 0
				check.Offset = int(math.Round(mid))
				w.drag.MoveTo(mid)
			},
			OnUpdate: func(f float64) { check.Alpha = f },
		},
		anim.Step{
			Kind:     anim.KindSlideHandle,
			Duration: w.timings.Medium,
			Ease:     anim.FastOutSlowIn,
			OnUpdate: func(f float64) {
				x := anim.Lerp(mid, end, f)
				w.drag.MoveTo(x)
				check.Offset = int(math.Round(x))
				check.Alpha = 1 - f
				bar.Alpha = 1 - f
			},
			OnEnd: func(a *anim.Animation) {
				if a.Canceled() {
					return
				}
				w.finishComplete()
			},
		},
	)
	a.OnDone(func(a *anim.Animation) {
		if a.Canceled() {
			w.anims.DismissOverlays(anim.OverlayProgress, anim.OverlayCheckMark)
		}
	})
}

// finishComplete renders the connection as enabled.
func (w *Widget) finishComplete() {
	w.anims.DismissOverlays(anim.OverlayProgress, anim.OverlayCheckMark)
	c := w.conn.Clone()
	c.Status = connection.StatusEnabled
	w.render(c)
}

// disable slides the handle off while the disable call runs. The result
// is applied by whichever of the animation and the call finishes last.
func (w *Widget) disable() {
	start := w.drag.Left()
	a := w.play(anim.Step{
		Kind:     anim.KindSlideHandle,
		Duration: w.timings.Short,
		Ease:     anim.FastOutSlowIn,
		OnStart: func(*anim.Animation) {
			w.label = fmt.Sprintf(labelReconnect, w.service.ShortName)
			w.labelAlpha = 0
		},
		OnUpdate: func(f float64) {
			w.drag.MoveTo(anim.Lerp(start, 0, f))
			w.labelAlpha = labelFadeOut * f
		},
		OnEnd: func(a *anim.Animation) {
			if a.Canceled() {
				return
			}
			w.drag.SetSettledAt(gesture.Off)
		},
	})
	w.disabling = a

	after := func(fn func()) {
		if !a.Running() {
			fn()
			return
		}
		a.OnDone(func(a *anim.Animation) {
			if !a.Canceled() {
				fn()
			} else if w.disabling == a {
				w.deferred = fn
			}
		})
	}
	w.queue(w.flow.DisableConnection(w.conn.ID, flow.DisableCallback{
		OnSuccess: func(c connection.Connection) {
			after(func() {
				w.labelAlpha = 1
				w.render(c)
			})
		},
		OnFailure: func(e connection.ErrorResponse) {
			w.notifyError(e)
			after(func() {
				w.labelAlpha = 1
				w.anims.DismissOverlays(anim.OverlayProgress)
				w.reset()
			})
		},
	}))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
