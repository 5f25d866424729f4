// @title           Remote Finder API
// @version         1.0
// @description     Session-managed SSH/SFTP gateway behind the browser file manager.
// @schemes         http https
// @BasePath        /api
// @securityDefinitions.apikey SessionToken
// @in header
// @name x-session-token
package main

import (
	_ "remote-finder/docs"
)

func main() {
	execute()
}
