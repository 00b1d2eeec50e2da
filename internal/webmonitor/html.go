package webmonitor

import "html/template"

type pageData struct {
	Title         string
	BrowserSpeech bool
	WebRTC        bool
}

var indexTemplate = template.Must(template.New("index").Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        :root { --cyan:#00f0ff; --red:#ff003c; --purple:#a855f7; --green:#4ade80; --orange:#fb923c; }
        * { box-sizing: border-box; }
        body { margin:0; background:#000; color:var(--cyan); font-family:ui-monospace,Menlo,Consolas,monospace; }
        .header { display:flex; justify-content:space-between; align-items:center; padding:8px 12px; border-bottom:1px solid rgba(0,240,255,.3); }
        .title { font-size:22px; font-weight:bold; letter-spacing:.15em; color:#fff; }
        .badge { font-size:12px; font-weight:bold; padding:4px 12px; border:1px solid; border-radius:4px; }
        .badge.LOW { color:var(--red); border-color:var(--red); background:rgba(255,0,60,.1); }
        .badge.ELEVATED { color:var(--orange); border-color:var(--orange); background:rgba(251,146,60,.1); }
        .badge.HIGH { color:var(--cyan); border-color:var(--cyan); background:rgba(0,240,255,.1); }
        .grid { display:grid; grid-template-columns:3fr 6fr 3fr; gap:16px; padding:8px; height:70vh; }
        .col { display:flex; flex-direction:column; gap:12px; }
        .card { position:relative; border:1px solid; padding:10px; background:#000; }
        .card h3 { margin:0 0 6px; font-size:10px; letter-spacing:.2em; }
        .card .value { position:absolute; top:8px; right:12px; color:#fff; font-weight:bold; font-size:18px; }
        canvas.spark { width:100%; height:48px; display:block; }
        .bar { height:4px; background:#111; margin-top:8px; }
        .bar div { height:100%; background:var(--orange); width:0; }
        .video { position:relative; border:2px solid var(--cyan); overflow:hidden; display:flex; align-items:center; justify-content:center; }
        .video img { width:100%; height:100%; object-fit:cover; opacity:.9; }
        .flash { position:absolute; inset:0; background:#fff; opacity:0; pointer-events:none; transition:opacity .2s; }
        .logs { flex:1; border-color:#374151; overflow:hidden; font-size:10px; }
        .logs div { margin-bottom:3px; color:#6b7280; }
        .logs div.WARN { color:#f87171; }
        .logs div.EVT { color:var(--cyan); }
        button { width:100%; padding:10px; font-family:inherit; font-weight:bold; cursor:pointer; }
        #btn-capture { color:var(--cyan); background:rgba(0,240,255,.1); border:1px solid var(--cyan); }
        #btn-terminate { color:var(--red); background:rgba(127,29,29,.2); border:1px solid var(--red); }
        #btn-mode { color:#9ca3af; background:#0b0b0b; border:1px solid #374151; }
        .archive-title { font-size:12px; color:#6b7280; padding:0 10px; margin-top:8px; }
        .archive { display:flex; gap:8px; overflow-x:auto; padding:8px 10px; height:104px; }
        .thumb { position:relative; flex-shrink:0; }
        .thumb img { width:128px; height:80px; border:1px solid #374151; border-radius:4px; object-fit:cover; }
        .thumb span { position:absolute; bottom:0; right:0; background:rgba(0,0,0,.8); font-size:9px; padding:0 4px; }
    </style>
</head>
<body>
    <div class="header">
        <div class="title">{{.Title}}</div>
        <span class="badge LOW" id="status-badge">INITIALIZING...</span>
    </div>

    <div class="grid">
        <div class="col">
            <div class="card" style="border-color:#22d3ee"><h3 style="color:#22d3ee">CPU THREADS</h3><span class="value" id="cpu-val">0%</span><canvas class="spark" id="cpu-chart"></canvas></div>
            <div class="card" style="border-color:var(--purple)"><h3 style="color:var(--purple)">RAM BUFFER</h3><span class="value" id="ram-val">0%</span><canvas class="spark" id="ram-chart"></canvas></div>
            <div class="card" style="border-color:var(--green)"><h3 style="color:var(--green)">UPLINK (MB/s)</h3><span class="value" id="net-val">0.0</span><canvas class="spark" id="net-chart"></canvas></div>
            <div class="card" style="border-color:var(--orange)">
                <h3 style="color:var(--orange)">DRIVE STATUS <span style="float:right;color:#fff" id="disk-val">0%</span></h3>
                <div class="bar"><div id="disk-bar"></div></div>
            </div>
        </div>

        <div class="video" id="video-panel">
            <img id="stream" src="/stream" alt="vision feed">
            <div class="flash" id="flash"></div>
        </div>

        <div class="col">
            <div class="card logs"><h3 style="color:#6b7280">KERNEL LOGS</h3><div id="log-lines"></div></div>
            <button id="btn-capture">CAPTURE FRAME</button>
            {{if .WebRTC}}<button id="btn-mode">LINK: MJPEG</button>{{end}}
            <button id="btn-terminate">TERMINATE</button>
        </div>
    </div>

    <div class="archive-title">ENCRYPTED ARCHIVE</div>
    <div class="archive" id="archive"></div>

    <script>
        const browserSpeech = {{.BrowserSpeech}};
        const webrtcEnabled = {{.WebRTC}};
        const $ = (id) => document.getElementById(id);

        function spark(canvas, values, color, max) {
            const w = canvas.width = canvas.clientWidth;
            const h = canvas.height = canvas.clientHeight;
            const ctx = canvas.getContext('2d');
            ctx.clearRect(0, 0, w, h);
            if (!values || values.length === 0) return;
            const top = max || Math.max(1, ...values);
            const step = values.length > 1 ? w / (values.length - 1) : w;
            ctx.beginPath();
            ctx.moveTo(0, h);
            values.forEach((v, i) => ctx.lineTo(i * step, h - (Math.min(v, top) / top) * h));
            ctx.lineTo((values.length - 1) * step, h);
            ctx.closePath();
            ctx.fillStyle = color + '33';
            ctx.fill();
            ctx.beginPath();
            values.forEach((v, i) => {
                const y = h - (Math.min(v, top) / top) * h;
                if (i === 0) ctx.moveTo(0, y); else ctx.lineTo(i * step, y);
            });
            ctx.strokeStyle = color;
            ctx.lineWidth = 1.5;
            ctx.stroke();
        }

        let galleryKey = '';
        function renderGallery(items) {
            const key = (items || []).map((i) => i.id).join(',');
            if (key === galleryKey) return;
            galleryKey = key;
            const row = $('archive');
            row.innerHTML = '';
            (items || []).forEach((item) => {
                const div = document.createElement('div');
                div.className = 'thumb';
                const a = document.createElement('a');
                a.href = item.url;
                a.target = '_blank';
                const img = document.createElement('img');
                img.src = item.thumb_url;
                a.appendChild(img);
                const label = document.createElement('span');
                label.textContent = item.label;
                div.appendChild(a);
                div.appendChild(label);
                row.appendChild(div);
            });
        }

        function render(st) {
            const badge = $('status-badge');
            badge.textContent = st.badge;
            badge.className = 'badge ' + st.threat;

            const t = st.telemetry;
            $('cpu-val').textContent = t.cpu.toFixed(1) + '%';
            $('ram-val').textContent = t.ram.toFixed(1) + '%';
            $('net-val').textContent = t.net_label;
            $('disk-val').textContent = t.disk_label;
            $('disk-bar').style.width = t.disk + '%';
            spark($('cpu-chart'), st.history.cpu, '#00f0ff', 100);
            spark($('ram-chart'), st.history.ram, '#a855f7', 100);
            spark($('net-chart'), st.history.net, '#4ade80');

            const logs = $('log-lines');
            logs.innerHTML = '';
            (st.logs || []).forEach((line) => {
                const div = document.createElement('div');
                div.className = line.level;
                div.textContent = '[' + line.level + '] ' + line.text;
                logs.appendChild(div);
            });
            renderGallery(st.gallery);
        }

        function connectStatus() {
            const es = new EventSource('/api/status/stream');
            es.onmessage = (e) => render(JSON.parse(e.data));
            es.onerror = () => { $('status-badge').textContent = 'LINK LOST'; };
        }

        function connectVoice() {
            if (!browserSpeech || !('speechSynthesis' in window)) return;
            const es = new EventSource('/api/voice/stream');
            es.onmessage = (e) => {
                const msg = JSON.parse(e.data);
                window.speechSynthesis.speak(new SpeechSynthesisUtterance(msg.phrase));
            };
        }

        function flash() {
            const f = $('flash');
            f.style.opacity = '0.5';
            setTimeout(() => { f.style.opacity = '0'; }, 100);
        }

        $('btn-capture').addEventListener('click', async () => {
            flash();
            const resp = await fetch('/api/capture', { method: 'POST' });
            if (!resp.ok) {
                const body = await resp.json().catch(() => ({}));
                console.warn('[Capture] failed:', body.error || resp.status);
            }
        });

        $('btn-terminate').addEventListener('click', async () => {
            if (!confirm('Terminate the dashboard?')) return;
            await fetch('/api/terminate', { method: 'POST' });
            $('status-badge').textContent = 'OFFLINE';
        });

        // WebRTC frame link: JPEG frames arrive over a data channel as a
        // JSON header followed by binary chunks.
        let pc = null;
        async function startWebRTC() {
            pc = new RTCPeerConnection({ iceServers: [{ urls: 'stun:stun.l.google.com:19302' }] });
            const dc = pc.createDataChannel('frames', { ordered: true });
            dc.binaryType = 'arraybuffer';
            let expected = 0, parts = [], received = 0, lastURL = null;
            dc.onmessage = (e) => {
                if (typeof e.data === 'string') {
                    expected = JSON.parse(e.data).size;
                    parts = []; received = 0;
                    return;
                }
                parts.push(e.data);
                received += e.data.byteLength;
                if (expected > 0 && received >= expected) {
                    const url = URL.createObjectURL(new Blob(parts, { type: 'image/jpeg' }));
                    $('stream').src = url;
                    if (lastURL) URL.revokeObjectURL(lastURL);
                    lastURL = url;
                    expected = 0;
                }
            };
            const offer = await pc.createOffer();
            await pc.setLocalDescription(offer);
            await new Promise((resolve) => {
                if (pc.iceGatheringState === 'complete') return resolve();
                pc.addEventListener('icegatheringstatechange', () => {
                    if (pc.iceGatheringState === 'complete') resolve();
                });
            });
            const resp = await fetch('/api/webrtc/offer', {
                method: 'POST',
                headers: { 'Content-Type': 'application/json' },
                body: JSON.stringify(pc.localDescription),
            });
            if (!resp.ok) throw new Error('offer rejected: ' + resp.status);
            await pc.setRemoteDescription(await resp.json());
        }

        function stopWebRTC() {
            if (pc) { pc.close(); pc = null; }
        }

        if (webrtcEnabled) {
            let mode = 'mjpeg';
            $('btn-mode').addEventListener('click', async () => {
                if (mode === 'mjpeg') {
                    $('stream').src = '';
                    try {
                        await startWebRTC();
                        mode = 'webrtc';
                        $('btn-mode').textContent = 'LINK: WEBRTC';
                    } catch (err) {
                        console.warn('[WebRTC]', err);
                        $('stream').src = '/stream?t=' + Date.now();
                    }
                } else {
                    stopWebRTC();
                    $('stream').src = '/stream?t=' + Date.now();
                    mode = 'mjpeg';
                    $('btn-mode').textContent = 'LINK: MJPEG';
                }
            });
        }

        window.addEventListener('load', () => {
            connectStatus();
            connectVoice();
        });
    </script>
</body>
</html>
`
