package main

var page = `
<html>
	<script>
		window.setInterval(function(){
			let t = new Date().getTime()
			document.getElementById('key').src = "/key.png?random=" + t;
			document.getElementById('delta').src = "/delta.png?random=" + t;
		}, 1000);
	</script>
	<body>
		<div>
			<img id="key" display="flex" src="/key.png" style="max-width: 49%; height: auto; "/>
			<img id="delta" display="flex" src="/delta.png" style="max-width: 49%; height: auto; "/>
		</div>
	</body>
</html>
`
