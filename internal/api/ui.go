package api

import (
	"net/http"
)

const visualizerHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>astarviz</title>
    <style>
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: monospace;
            background: #111827;
            color: #eee;
            min-height: 100vh;
            display: flex;
            flex-direction: column;
            align-items: center;
        }
        header {
            width: 100%;
            background: #16213e;
            padding: 12px 20px;
            border-bottom: 1px solid #0f3460;
            display: flex;
            justify-content: space-between;
            align-items: center;
        }
        header h1 { font-size: 16px; font-weight: normal; }
        #conn { padding: 4px 10px; border-radius: 4px; font-size: 12px; }
        #conn.connected { background: #1b4332; color: #95d5b2; }
        #conn.disconnected { background: #7f1d1d; color: #fca5a5; }
        #conn.connecting { background: #78350f; color: #fcd34d; }
        .controls { display: flex; gap: 10px; align-items: center; padding: 14px; }
        .controls button {
            border: none;
            border-radius: 6px;
            padding: 8px 18px;
            color: #fff;
            font-family: monospace;
            font-size: 13px;
            cursor: pointer;
        }
        .controls button:disabled { background: #374151; cursor: not-allowed; }
        #runBtn { background: #059669; }
        #resetBtn { background: #dc2626; }
        #speed { display: flex; gap: 4px; }
        #speed button { background: #1e3a8a; padding: 8px 12px; }
        #speed button.active { background: #2563eb; }
        #speed.hidden { display: none; }
        #info { min-height: 24px; font-size: 13px; display: flex; gap: 16px; }
        #info .name { color: #9ca3af; }
        canvas { background: #f3f4f6; border-radius: 8px; margin: 10px; }
    </style>
</head>
<body>
    <header>
        <h1>astarviz - A* search</h1>
        <span id="conn" class="disconnected">Disconnected</span>
    </header>
    <div class="controls">
        <button id="runBtn">Run</button>
        <button id="resetBtn">Reset</button>
        <div id="speed">
            <button data-speed="1x">1x</button>
            <button data-speed="5x">5x</button>
            <button data-speed="max">max</button>
        </div>
    </div>
    <div id="info"></div>
    <canvas id="board"></canvas>

    <script>
        const connEl = document.getElementById('conn');
        const infoEl = document.getElementById('info');
        const runBtn = document.getElementById('runBtn');
        const speedEl = document.getElementById('speed');
        let graph = null;
        let byId = {};
        let frame = null;
        let ws = null;
        let reconnectTimer = null;

        // Each canvas scales for its own device pixel ratio when it is sized.
        function setupCanvas(canvas, width, height) {
            const dpi = window.devicePixelRatio || 1;
            canvas.width = width * dpi;
            canvas.height = height * dpi;
            canvas.style.width = width + 'px';
            canvas.style.height = height + 'px';
            const ctx = canvas.getContext('2d');
            ctx.setTransform(dpi, 0, 0, dpi, 0, 0);
            return ctx;
        }

        const canvas = document.getElementById('board');
        let ctx = null;

        function post(path, body) {
            return fetch('/api/v1/' + path, {
                method: 'POST',
                headers: { 'Content-Type': 'application/json' },
                body: body ? JSON.stringify(body) : ''
            }).then(function(r) { return r.json(); }).catch(function(err) {
                console.error(path + ' failed:', err);
            });
        }

        function line(a, b, color, width) {
            ctx.strokeStyle = color;
            ctx.lineWidth = width;
            ctx.beginPath();
            ctx.moveTo(a.x, a.y);
            ctx.lineTo(b.x, b.y);
            ctx.stroke();
        }

        function draw() {
            if (!graph || !ctx) return;
            ctx.clearRect(0, 0, canvas.width, canvas.height);

            graph.nodes.forEach(function(n) {
                (n.neighbors || []).forEach(function(id) {
                    const m = byId[id];
                    if (m) line(n, m, 'gray', 1);
                });
            });

            const f = frame || {};
            (f.edges || []).forEach(function(e) {
                const head = {
                    x: e.start.x + (e.end.x - e.start.x) * e.progress,
                    y: e.start.y + (e.end.y - e.start.y) * e.progress
                };
                line(e.start, head, 'lightblue', 2);
            });

            const path = f.path || [];
            if (f.path_revealed) {
                for (let i = 1; i < path.length; i++) {
                    line(byId[path[i - 1]], byId[path[i]], 'gold', 3);
                }
            }

            const closed = new Set(f.closed || []);
            const onPath = new Set(path);
            graph.nodes.forEach(function(n) {
                let fill = 'grey';
                if (closed.has(n.id)) fill = 'lightblue';
                if (onPath.has(n.id)) fill = 'gold';
                if (n.id === f.start) fill = 'lightgreen';
                if (n.id === f.end) fill = 'pink';

                ctx.beginPath();
                ctx.arc(n.x, n.y, n.id === f.hovered ? 12 : 10, 0, Math.PI * 2);
                ctx.fillStyle = fill;
                ctx.fill();
                ctx.strokeStyle = 'black';
                ctx.lineWidth = 1;
                ctx.stroke();

                ctx.fillStyle = 'black';
                ctx.textAlign = 'center';
                ctx.textBaseline = 'middle';
                ctx.font = '12px sans-serif';
                ctx.fillText(n.id, n.x, n.y);
            });
        }

        function renderInfo(status) {
            infoEl.innerHTML = '';
            if (!status) return;
            if (status.message) {
                infoEl.textContent = status.message;
                return;
            }
            (status.fields || []).forEach(function(f) {
                const span = document.createElement('span');
                const name = document.createElement('span');
                name.className = 'name';
                name.textContent = f.name + ': ';
                span.appendChild(name);
                span.appendChild(document.createTextNode(f.value));
                infoEl.appendChild(span);
            });
        }

        function apply(f) {
            frame = f;
            runBtn.disabled = f.running || !f.start || !f.end;
            speedEl.className = f.running ? 'hidden' : '';
            speedEl.querySelectorAll('button').forEach(function(b) {
                b.className = b.dataset.speed === f.speed ? 'active' : '';
            });
            renderInfo(f.status);
            draw();
        }

        function setConn(state) {
            connEl.className = state;
            connEl.textContent = state.charAt(0).toUpperCase() + state.slice(1);
        }

        function connect() {
            if (ws && ws.readyState === WebSocket.OPEN) return;
            setConn('connecting');

            const protocol = location.protocol === 'https:' ? 'wss:' : 'ws:';
            ws = new WebSocket(protocol + '//' + location.host + '/ws/frames');

            ws.onopen = function() {
                setConn('connected');
                if (reconnectTimer) {
                    clearTimeout(reconnectTimer);
                    reconnectTimer = null;
                }
            };
            ws.onmessage = function(msg) {
                try {
                    apply(JSON.parse(msg.data));
                } catch (err) {
                    console.error('Failed to parse frame:', err);
                }
            };
            ws.onclose = function() {
                setConn('disconnected');
                if (reconnectTimer) return;
                reconnectTimer = setTimeout(function() {
                    reconnectTimer = null;
                    connect();
                }, 3000);
            };
            ws.onerror = function() { ws.close(); };
        }

        let lastHover = 0;
        canvas.addEventListener('mousemove', function(e) {
            const now = Date.now();
            if (now - lastHover < 30) return;
            lastHover = now;
            post('hover', { command: 'hover', x: e.offsetX, y: e.offsetY });
        });
        canvas.addEventListener('click', function() { post('click'); });
        runBtn.addEventListener('click', function() { post('run'); });
        document.getElementById('resetBtn').addEventListener('click', function() { post('reset'); });
        speedEl.querySelectorAll('button').forEach(function(b) {
            b.addEventListener('click', function() { post('speed', { speed: b.dataset.speed }); });
        });

        fetch('/api/v1/graph').then(function(r) { return r.json(); }).then(function(g) {
            graph = g;
            byId = {};
            g.nodes.forEach(function(n) { byId[n.id] = n; });
            ctx = setupCanvas(canvas, g.bounds.x + 20, g.bounds.y + 20);
            draw();
            connect();
        });
    </script>
</body>
</html>`

// uiHandler serves the canvas visualizer page.
func uiHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(visualizerHTML))
}
